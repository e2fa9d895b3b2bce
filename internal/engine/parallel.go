package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rendis/agentflow/internal/streaming"
	"github.com/rendis/agentflow/pkg/schema"
)

// ParallelRunner fans independent tasks out over a bounded worker pool.
// Every task reads the same immutable context snapshot, so batch results
// never feed each other; ordering within a batch is undefined.
type ParallelRunner struct {
	dispatcher *Dispatcher
	pool       *WorkerPool
	hub        streaming.EventHub
	logger     *slog.Logger
}

// NewParallelRunner creates a ParallelRunner backed by the given pool.
func NewParallelRunner(dispatcher *Dispatcher, pool *WorkerPool, hub streaming.EventHub, logger *slog.Logger) *ParallelRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParallelRunner{dispatcher: dispatcher, pool: pool, hub: hub, logger: logger}
}

// Batch executes all tasks concurrently against snapshot and returns the
// annotated results keyed by task ID. Faults never abort the batch: a task
// that cannot be submitted (pool shutdown, cancellation) or that fails
// validation gets a synthesized failed result, exactly like an in-agent
// failure would.
func (p *ParallelRunner) Batch(ctx context.Context, tasks []schema.TaskSpec, snapshot map[string]any) map[string]*schema.TaskExecution {
	results := make(map[string]*schema.TaskExecution, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	record := func(id string, exec *schema.TaskExecution) {
		mu.Lock()
		results[id] = exec
		mu.Unlock()
	}

	seen := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		task := task

		if task.TaskID == "" {
			p.logger.WarnContext(ctx, "dropping parallel task with empty task_id", "agent", task.Agent)
			continue
		}
		if _, dup := seen[task.TaskID]; dup {
			// First occurrence wins; a second result under the same key
			// would silently overwrite it.
			p.logger.WarnContext(ctx, "dropping duplicate task_id in parallel batch", "task_id", task.TaskID)
			continue
		}
		seen[task.TaskID] = struct{}{}

		publish(ctx, p.hub, taskEvent(ctx, task, schema.EventTaskStarted, nil))

		wg.Add(1)
		err := p.pool.Submit(ctx, func(ctx context.Context) {
			defer wg.Done()
			exec, err := p.dispatcher.RunTask(ctx, task, snapshot)
			if err != nil {
				// Agent faults fold per task here; siblings keep running.
				exec = failedExecution(task, err.Error())
			}
			record(task.TaskID, exec)
			publish(ctx, p.hub, taskEvent(ctx, task, taskEventType(exec.Result), exec.Result))
		})
		if err != nil {
			wg.Done()
			exec := failedExecution(task, err.Error())
			record(task.TaskID, exec)
			publish(ctx, p.hub, taskEvent(ctx, task, schema.EventTaskFailed, exec.Result))
		}
	}

	wg.Wait()
	return results
}

func failedExecution(task schema.TaskSpec, message string) *schema.TaskExecution {
	return &schema.TaskExecution{
		Agent:     task.Agent,
		Result:    schema.FailedResult(message),
		Timestamp: time.Now().UTC(),
	}
}
