package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoJQEngine_FieldExtraction(t *testing.T) {
	eng := NewGoJQEngine()
	data := map[string]any{"result": map[string]any{"answer": "yes", "score": 0.9}}

	out, err := eng.Evaluate(context.Background(), ".result.answer", data)
	require.NoError(t, err)
	assert.Equal(t, "yes", out)
}

func TestGoJQEngine_MultipleOutputs(t *testing.T) {
	eng := NewGoJQEngine()
	data := map[string]any{"items": []any{"a", "b"}}

	out, err := eng.Evaluate(context.Background(), ".items[]", data)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, out)
}

func TestGoJQEngine_IntNormalization(t *testing.T) {
	eng := NewGoJQEngine()
	data := map[string]any{"n": 10}

	out, err := eng.Evaluate(context.Background(), ".n + 1", data)
	require.NoError(t, err)
	assert.Equal(t, float64(11), out)
}

func TestGoJQEngine_NoOutput(t *testing.T) {
	eng := NewGoJQEngine()

	out, err := eng.Evaluate(context.Background(), "empty", map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQEngine_ParseError(t *testing.T) {
	eng := NewGoJQEngine()

	_, err := eng.Evaluate(context.Background(), ".[broken", map[string]any{})
	assert.Error(t, err)
}

func TestGoJQEngine_EnvAccessBlocked(t *testing.T) {
	eng := NewGoJQEngine()

	out, err := eng.Evaluate(context.Background(), "$ENV | length", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0, out)
}
