package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/agentflow/internal/agents"
	"github.com/rendis/agentflow/internal/expressions"
	"github.com/rendis/agentflow/internal/logging"
	"github.com/rendis/agentflow/pkg/schema"
)

// Dispatcher executes a single task against the agent registry: it
// evaluates the condition guard, resolves ${path} references in the task
// input, and invokes the agent.
//
// Task-level failures (unknown agent, condition error, nil result) are
// folded into a failed TaskResult so callers always get a TaskExecution
// to record. An agent fault, a non-nil error return or a recovered panic,
// is returned as an error instead: the sequential runner escalates it to
// a failed run, while the parallel runner folds it per task.
type Dispatcher struct {
	agents   *agents.Registry
	resolver *expressions.Resolver
	cel      *expressions.CELEngine
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(reg *agents.Registry, resolver *expressions.Resolver, cel *expressions.CELEngine, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{agents: reg, resolver: resolver, cel: cel, logger: logger}
}

// RunTask executes one task against the given resolution scope. The scope
// is read-only here; folding results back into the execution context is the
// caller's responsibility. A non-nil error means the agent itself faulted
// (error return or panic); everything else lands in the TaskExecution.
func (d *Dispatcher) RunTask(ctx context.Context, task schema.TaskSpec, scope map[string]any) (*schema.TaskExecution, error) {
	ctx = logging.WithTaskID(ctx, task.TaskID)
	ctx = logging.WithAgent(ctx, task.Agent)

	if task.Condition != "" {
		ok, err := d.cel.EvaluateBool(ctx, task.Condition, scope)
		if err != nil {
			d.logger.WarnContext(ctx, "condition evaluation failed", "error", err)
			return d.finish(task, schema.FailedResult(err.Error()), 0), nil
		}
		if !ok {
			d.logger.InfoContext(ctx, "task skipped, condition false")
			return d.finish(task, schema.SkippedResult(fmt.Sprintf("condition %q is false", task.Condition)), 0), nil
		}
	}

	agent, err := d.agents.Get(task.Agent)
	if err != nil {
		d.logger.WarnContext(ctx, "agent not registered")
		return d.finish(task, schema.FailedResult(fmt.Sprintf("agent %q not found", task.Agent)), 0), nil
	}

	input := toTaskInput(d.resolver.Resolve(task.Input, scope))

	d.logger.InfoContext(ctx, "dispatching task")
	start := time.Now()
	result, err := d.invoke(ctx, agent, input)
	elapsed := time.Since(start)

	if err != nil {
		d.logger.WarnContext(ctx, "agent call faulted", "error", err, "duration", elapsed)
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "agent %q faulted: %v", task.Agent, err).
			WithTask(task.TaskID).WithCause(err)
	}
	if result == nil {
		result = schema.FailedResult(fmt.Sprintf("agent %q returned no result", task.Agent))
	}

	d.logger.InfoContext(ctx, "task finished",
		"status", schema.ResultStatus(result), "duration", elapsed)
	return d.finish(task, result, elapsed), nil
}

// invoke calls the agent with panic recovery. A panicking agent yields an
// error rather than tearing down the run.
func (d *Dispatcher) invoke(ctx context.Context, agent agents.Agent, input map[string]any) (result schema.TaskResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = schema.NewErrorf(schema.ErrCodeExecution, "agent %q panicked: %v", agent.Name(), r)
		}
	}()
	return agent.Execute(ctx, input)
}

func (d *Dispatcher) finish(task schema.TaskSpec, result schema.TaskResult, elapsed time.Duration) *schema.TaskExecution {
	return &schema.TaskExecution{
		Agent:     task.Agent,
		Result:    result,
		Duration:  elapsed,
		Timestamp: time.Now().UTC(),
	}
}

// toTaskInput coerces a resolved input template into the map shape agents
// receive. Non-map inputs (a bare templated string, a list) are wrapped
// under "value"; a nil input becomes an empty map.
func toTaskInput(resolved any) map[string]any {
	switch v := resolved.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return v
	default:
		return map[string]any{"value": v}
	}
}
