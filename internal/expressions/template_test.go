package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_SimpleSubstitution(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"a": map[string]any{"b": "X"}}

	out := r.Resolve("value=${a.b}", ctx)
	assert.Equal(t, "value=X", out)
}

func TestResolver_MissingLeafLeftVerbatim(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"a": map[string]any{"b": "X"}}

	out := r.Resolve("value=${a.c}", ctx)
	assert.Equal(t, "value=${a.c}", out)
}

func TestResolver_NonMapIntermediate(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"a": "not-a-map"}

	out := r.Resolve("${a.b}", ctx)
	assert.Equal(t, "${a.b}", out)
}

func TestResolver_NilValueIsAbsent(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"a": map[string]any{"b": nil}}

	out := r.Resolve("${a.b}", ctx)
	assert.Equal(t, "${a.b}", out)
}

func TestResolver_RepeatedReference(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"name": "ada"}

	out := r.Resolve("${name} and ${name}", ctx)
	assert.Equal(t, "ada and ada", out)
}

func TestResolver_MultipleDistinctReferences(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{
		"input":   map[string]any{"topic": "leave policy"},
		"analyze": map[string]any{"answer": "14 days"},
	}

	out := r.Resolve("Q: ${input.topic} A: ${analyze.answer}", ctx)
	assert.Equal(t, "Q: leave policy A: 14 days", out)
}

func TestResolver_NonStringValues(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{
		"n":    map[string]any{"count": float64(42), "ok": true},
		"list": map[string]any{"items": []any{"a", "b"}},
	}

	assert.Equal(t, "count=42", r.Resolve("count=${n.count}", ctx))
	assert.Equal(t, "ok=true", r.Resolve("ok=${n.ok}", ctx))
	assert.Equal(t, `items=["a","b"]`, r.Resolve("items=${list.items}", ctx))
}

func TestResolver_MapAndSliceRecursion(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"task1": map[string]any{"answer": "yes"}}

	tmpl := map[string]any{
		"question": "was it ${task1.answer}?",
		"sources":  []any{"${task1.answer}", "static"},
		"nested":   map[string]any{"deep": "${task1.answer}"},
		"count":    3,
	}

	out, ok := r.Resolve(tmpl, ctx).(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "was it yes?", out["question"])
	assert.Equal(t, []any{"yes", "static"}, out["sources"])
	assert.Equal(t, map[string]any{"deep": "yes"}, out["nested"])
	assert.Equal(t, 3, out["count"])
}

func TestResolver_NoReferencesIdempotent(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"a": map[string]any{"b": "X"}}

	tmpl := map[string]any{
		"plain":  "no references here",
		"nested": []any{"still none", map[string]any{"k": "v"}},
	}
	out := r.Resolve(tmpl, ctx)
	assert.Equal(t, tmpl, out)
}

func TestResolver_DoesNotMutateInputs(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"task": map[string]any{"v": "resolved"}}
	tmpl := map[string]any{"field": "${task.v}"}

	_ = r.Resolve(tmpl, ctx)

	assert.Equal(t, "${task.v}", tmpl["field"])
	assert.Equal(t, map[string]any{"task": map[string]any{"v": "resolved"}}, ctx)
}

func TestResolver_MalformedTokens(t *testing.T) {
	r := NewResolver()
	ctx := map[string]any{"a": "x"}

	// Unclosed and empty tokens stay literal.
	assert.Equal(t, "prefix ${a", r.Resolve("prefix ${a", ctx))
	assert.Equal(t, "v=${}", r.Resolve("v=${}", ctx))
	// A dollar without a brace is plain text.
	assert.Equal(t, "$a costs $5", r.Resolve("$a costs $5", ctx))
}

func TestResolver_NonTemplateTypesUnchanged(t *testing.T) {
	r := NewResolver()
	assert.Equal(t, 7, r.Resolve(7, nil))
	assert.Equal(t, true, r.Resolve(true, nil))
	assert.Nil(t, r.Resolve(nil, nil))
}

func TestParseTemplate_Segments(t *testing.T) {
	tpl := parseTemplate("a ${x.y} b ${z} c")
	require.True(t, tpl.hasRefs)
	require.Len(t, tpl.segments, 5)
	assert.Equal(t, []string{"x", "y"}, tpl.segments[1].path)
	assert.Equal(t, "${x.y}", tpl.segments[1].raw)
	assert.Equal(t, []string{"z"}, tpl.segments[3].path)
}

func TestHasReferences(t *testing.T) {
	assert.True(t, HasReferences("${a}"))
	assert.False(t, HasReferences("plain"))
	assert.False(t, HasReferences("${"))
	assert.False(t, HasReferences("${}"))
}
