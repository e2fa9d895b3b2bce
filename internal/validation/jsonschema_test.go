package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/agentflow/pkg/schema"
)

func newValidator(t *testing.T) *JSONSchemaValidator {
	t.Helper()
	v, err := NewJSONSchemaValidator()
	require.NoError(t, err)
	return v
}

func TestValidateDefinition_Valid(t *testing.T) {
	v := newValidator(t)

	def := &schema.WorkflowDefinition{
		Name:        "ticket_flow",
		Description: "Routes support tickets",
		OutputVar:   "reply",
		Tags:        []string{"support"},
		Tasks: []schema.TaskSpec{
			{TaskID: "triage", Agent: "classifier", Input: map[string]any{"text": "${input.text}"}},
			{TaskID: "reply", Agent: "writer", Condition: `tasks.triage.status == "completed"`},
		},
	}

	assert.NoError(t, v.ValidateDefinition(def))
}

func TestValidateDefinition_NoTasks(t *testing.T) {
	v := newValidator(t)

	err := v.ValidateDefinition(&schema.WorkflowDefinition{})
	require.Error(t, err)

	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
}

func TestValidateDefinition_MissingAgent(t *testing.T) {
	v := newValidator(t)

	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{{TaskID: "t"}},
	})
	assert.Error(t, err)
}

func TestValidateDefinition_DuplicateTaskIDs(t *testing.T) {
	v := newValidator(t)

	err := v.ValidateDefinition(&schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "t", Agent: "a"},
			{TaskID: "t", Agent: "b"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateDefinition_Nil(t *testing.T) {
	v := newValidator(t)
	assert.Error(t, v.ValidateDefinition(nil))
}

func TestValidateInput_Valid(t *testing.T) {
	v := newValidator(t)

	inputSchema := []byte(`{
		"type": "object",
		"required": ["topic"],
		"properties": {
			"topic": { "type": "string" },
			"limit": { "type": "integer", "minimum": 1 }
		}
	}`)

	assert.NoError(t, v.ValidateInput(map[string]any{"topic": "billing", "limit": 5}, inputSchema))
}

func TestValidateInput_Violations(t *testing.T) {
	v := newValidator(t)

	inputSchema := []byte(`{
		"type": "object",
		"required": ["topic"],
		"properties": {
			"topic": { "type": "string" }
		}
	}`)

	err := v.ValidateInput(map[string]any{"limit": 3}, inputSchema)
	require.Error(t, err)

	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeValidation, fe.Code)
	assert.NotEmpty(t, fe.Details["violations"])
}

func TestValidateInput_NoSchemaSkips(t *testing.T) {
	v := newValidator(t)
	assert.NoError(t, v.ValidateInput(map[string]any{"anything": true}, nil))
}

func TestValidateInput_BadSchema(t *testing.T) {
	v := newValidator(t)

	err := v.ValidateInput(map[string]any{}, []byte(`{not json`))
	assert.Error(t, err)
}

func TestValidateInput_CachesCompiledSchemas(t *testing.T) {
	v := newValidator(t)

	inputSchema := []byte(`{"type": "object"}`)
	require.NoError(t, v.ValidateInput(map[string]any{}, inputSchema))
	require.NoError(t, v.ValidateInput(map[string]any{"k": "v"}, inputSchema))

	v.mu.RLock()
	defer v.mu.RUnlock()
	assert.Len(t, v.cache, 1)
}
