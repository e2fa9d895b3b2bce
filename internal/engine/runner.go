package engine

import (
	"context"
	"log/slog"

	"github.com/rendis/agentflow/internal/expressions"
	"github.com/rendis/agentflow/internal/streaming"
	"github.com/rendis/agentflow/pkg/schema"
)

// Runner walks a workflow's tasks in declared order over a shared
// execution context. Each completed task's result is folded into the
// context before the next task resolves its input, which is how later
// tasks reference earlier outputs.
type Runner struct {
	dispatcher *Dispatcher
	hub        streaming.EventHub
	logger     *slog.Logger
}

// NewRunner creates a sequential Runner.
func NewRunner(dispatcher *Dispatcher, hub streaming.EventHub, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{dispatcher: dispatcher, hub: hub, logger: logger}
}

// Run executes the definition's tasks sequentially, seeding the context
// with input. It returns every executed task's annotated result plus the
// final output: the context value named by OutputVar when set, otherwise
// the full map of raw task results.
//
// A task failure halts the walk unless the task opted into
// continue_on_failure; the failure itself stays visible in the results.
// The returned error is reserved for orchestration faults: context
// cancellation and agent faults (error return or panic). A fault aborts
// the walk immediately; results hold the tasks that ran before it.
func (r *Runner) Run(ctx context.Context, def *schema.WorkflowDefinition, input any) (map[string]*schema.TaskExecution, any, error) {
	ec := expressions.NewExecutionContext(input)
	results := make(map[string]*schema.TaskExecution, len(def.Tasks))

	for _, task := range def.Tasks {
		if err := ctx.Err(); err != nil {
			return results, nil, schema.NewErrorf(schema.ErrCodeExecution, "run canceled before task %q", task.TaskID).WithCause(err)
		}

		publish(ctx, r.hub, taskEvent(ctx, task, schema.EventTaskStarted, nil))

		exec, err := r.dispatcher.RunTask(ctx, task, ec.Map())
		if err != nil {
			r.logger.ErrorContext(ctx, "aborting run on agent fault",
				"task_id", task.TaskID, "error", err)
			publish(ctx, r.hub, taskEvent(ctx, task, schema.EventTaskFailed, nil))
			return results, nil, err
		}
		ec.Fold(task.TaskID, exec.Result)
		results[task.TaskID] = exec

		publish(ctx, r.hub, taskEvent(ctx, task, taskEventType(exec.Result), exec.Result))

		if schema.ResultStatus(exec.Result) == schema.TaskStatusFailed && !task.ContinueOnFailure {
			r.logger.WarnContext(ctx, "halting run on task failure",
				"task_id", task.TaskID, "error", schema.ResultError(exec.Result))
			break
		}
	}

	return results, r.output(def, ec, results), nil
}

// output picks the run output: the context entry named by OutputVar when
// the run produced it, otherwise the full task_id to result map. A halted
// run that never reached the OutputVar task falls back to the map too.
func (r *Runner) output(def *schema.WorkflowDefinition, ec *expressions.ExecutionContext, results map[string]*schema.TaskExecution) any {
	if def.OutputVar != "" {
		if v, ok := ec.Value(def.OutputVar); ok {
			return v
		}
	}
	out := make(map[string]any, len(results))
	for id, exec := range results {
		out[id] = exec.Result
	}
	return out
}
