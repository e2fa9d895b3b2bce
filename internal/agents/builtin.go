package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/rendis/agentflow/internal/expressions"
	"github.com/rendis/agentflow/pkg/schema"
)

// Builtins returns fresh instances of the built-in agents.
func Builtins() []Agent {
	return []Agent{
		NewEchoAgent(),
		NewTransformAgent(expressions.NewExprEngine()),
		NewExtractAgent(expressions.NewGoJQEngine()),
		NewComposeAgent(),
	}
}

// RegisterBuiltins registers the built-in agents in the given registry.
func RegisterBuiltins(reg *Registry) error {
	for _, a := range Builtins() {
		if err := reg.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// EchoAgent returns its input unchanged. Useful for wiring tests and for
// surfacing intermediate context values as task results.
type EchoAgent struct{}

// NewEchoAgent creates an echo agent.
func NewEchoAgent() *EchoAgent { return &EchoAgent{} }

func (a *EchoAgent) Name() string { return "echo" }

func (a *EchoAgent) Info() AgentInfo {
	return AgentInfo{
		Name:         "echo",
		Description:  "Returns the task input unchanged",
		Capabilities: []string{"echo"},
	}
}

func (a *EchoAgent) Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
	return schema.TaskResult{
		"status": schema.TaskStatusCompleted,
		"echo":   task,
	}, nil
}

// TransformAgent evaluates an expr-lang expression over the task input.
// The expression is read from the "expression" field; every other field of
// the task input is available as a top-level variable.
type TransformAgent struct {
	engine *expressions.ExprEngine
}

// NewTransformAgent creates a transform agent backed by the given engine.
func NewTransformAgent(engine *expressions.ExprEngine) *TransformAgent {
	return &TransformAgent{engine: engine}
}

func (a *TransformAgent) Name() string { return "transform" }

func (a *TransformAgent) Info() AgentInfo {
	return AgentInfo{
		Name:         "transform",
		Description:  "Evaluates an expr expression over the task input fields",
		Capabilities: []string{"transform", "expr"},
	}
}

func (a *TransformAgent) Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
	expression, ok := task["expression"].(string)
	if !ok || expression == "" {
		return schema.FailedResult("transform requires a string 'expression' field"), nil
	}

	env := make(map[string]any, len(task))
	for k, v := range task {
		if k == "expression" {
			continue
		}
		env[k] = v
	}

	out, err := a.engine.Evaluate(ctx, expression, env)
	if err != nil {
		return schema.FailedResult(err.Error()), nil
	}

	return schema.TaskResult{
		"status": schema.TaskStatusCompleted,
		"result": out,
	}, nil
}

// ExtractAgent runs a jq query against the "data" field of the task input.
type ExtractAgent struct {
	engine *expressions.GoJQEngine
}

// NewExtractAgent creates an extract agent backed by the given engine.
func NewExtractAgent(engine *expressions.GoJQEngine) *ExtractAgent {
	return &ExtractAgent{engine: engine}
}

func (a *ExtractAgent) Name() string { return "extract" }

func (a *ExtractAgent) Info() AgentInfo {
	return AgentInfo{
		Name:         "extract",
		Description:  "Runs a jq query against the task input's 'data' field",
		Capabilities: []string{"extract", "jq"},
	}
}

func (a *ExtractAgent) Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
	query, ok := task["query"].(string)
	if !ok || query == "" {
		return schema.FailedResult("extract requires a string 'query' field"), nil
	}

	data, _ := task["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}

	out, err := a.engine.Evaluate(ctx, query, data)
	if err != nil {
		return schema.FailedResult(err.Error()), nil
	}

	return schema.TaskResult{
		"status": schema.TaskStatusCompleted,
		"result": out,
	}, nil
}

// ComposeAgent joins the "parts" field of the task input into one string.
// Non-string parts are formatted with %v. An optional "separator" field
// overrides the default newline.
type ComposeAgent struct{}

// NewComposeAgent creates a compose agent.
func NewComposeAgent() *ComposeAgent { return &ComposeAgent{} }

func (a *ComposeAgent) Name() string { return "compose" }

func (a *ComposeAgent) Info() AgentInfo {
	return AgentInfo{
		Name:         "compose",
		Description:  "Joins the 'parts' field into a single string",
		Capabilities: []string{"compose"},
	}
}

func (a *ComposeAgent) Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
	rawParts, ok := task["parts"].([]any)
	if !ok {
		return schema.FailedResult("compose requires a 'parts' list field"), nil
	}

	separator := "\n"
	if s, ok := task["separator"].(string); ok {
		separator = s
	}

	parts := make([]string, 0, len(rawParts))
	for _, p := range rawParts {
		if s, ok := p.(string); ok {
			parts = append(parts, s)
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", p))
	}

	return schema.TaskResult{
		"status": schema.TaskStatusCompleted,
		"result": strings.Join(parts, separator),
	}, nil
}
