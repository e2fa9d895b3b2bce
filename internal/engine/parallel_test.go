package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/agentflow/internal/agents"
	"github.com/rendis/agentflow/pkg/schema"
)

func newTestParallel(t *testing.T, reg *agents.Registry, pool *WorkerPool) *ParallelRunner {
	t.Helper()
	return NewParallelRunner(newTestDispatcher(t, reg), pool, nil, testLogger())
}

func TestParallel_RunsAllTasks(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(capturingAgent("a")))

	pool := NewWorkerPool(4)
	defer pool.Shutdown()
	p := newTestParallel(t, reg, pool)

	tasks := []schema.TaskSpec{
		{TaskID: "t1", Agent: "a", Input: map[string]any{"topic": "${input.topic}"}},
		{TaskID: "t2", Agent: "a", Input: map[string]any{"topic": "${input.topic}"}},
		{TaskID: "t3", Agent: "a"},
	}
	snapshot := map[string]any{"input": map[string]any{"topic": "billing"}}

	results := p.Batch(context.Background(), tasks, snapshot)
	require.Len(t, results, 3)

	for _, id := range []string{"t1", "t2"} {
		received := results[id].Result["received"].(map[string]any)
		assert.Equal(t, "billing", received["topic"])
	}
}

func TestParallel_FailureDoesNotAbortBatch(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))
	require.NoError(t, reg.Register(staticAgent("bad", schema.FailedResult("boom"))))

	pool := NewWorkerPool(2)
	defer pool.Shutdown()
	p := newTestParallel(t, reg, pool)

	tasks := []schema.TaskSpec{
		{TaskID: "good", Agent: "ok"},
		{TaskID: "broken", Agent: "bad"},
		{TaskID: "missing", Agent: "ghost"},
	}

	results := p.Batch(context.Background(), tasks, map[string]any{})
	require.Len(t, results, 3)

	assert.Equal(t, schema.TaskStatusCompleted, schema.ResultStatus(results["good"].Result))
	assert.Equal(t, schema.TaskStatusFailed, schema.ResultStatus(results["broken"].Result))
	assert.Equal(t, schema.TaskStatusFailed, schema.ResultStatus(results["missing"].Result))
}

func TestParallel_AgentFaultFoldsPerTask(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))
	require.NoError(t, reg.Register(&agents.AgentFunc{
		AgentName: "faulty",
		Fn: func(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
			return nil, errors.New("backend exploded")
		},
	}))

	pool := NewWorkerPool(2)
	defer pool.Shutdown()
	p := newTestParallel(t, reg, pool)

	tasks := []schema.TaskSpec{
		{TaskID: "good", Agent: "ok"},
		{TaskID: "faulted", Agent: "faulty"},
	}

	results := p.Batch(context.Background(), tasks, map[string]any{})
	require.Len(t, results, 2)

	// A faulting agent never aborts the batch; its task is reported failed
	// and siblings finish normally.
	assert.Equal(t, schema.TaskStatusCompleted, schema.ResultStatus(results["good"].Result))
	assert.Equal(t, schema.TaskStatusFailed, schema.ResultStatus(results["faulted"].Result))
	assert.Contains(t, schema.ResultError(results["faulted"].Result), "backend exploded")
}

func TestParallel_TasksDoNotSeeEachOther(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(capturingAgent("a")))

	pool := NewWorkerPool(2)
	defer pool.Shutdown()
	p := newTestParallel(t, reg, pool)

	tasks := []schema.TaskSpec{
		{TaskID: "t1", Agent: "a"},
		{TaskID: "t2", Agent: "a", Input: map[string]any{"peer": "${t1.status}"}},
	}

	results := p.Batch(context.Background(), tasks, map[string]any{"input": nil})

	// t2 resolves against the snapshot, which never contains t1's result.
	received := results["t2"].Result["received"].(map[string]any)
	assert.Equal(t, "${t1.status}", received["peer"])
}

func TestParallel_DuplicateTaskID(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))

	pool := NewWorkerPool(2)
	defer pool.Shutdown()
	p := newTestParallel(t, reg, pool)

	tasks := []schema.TaskSpec{
		{TaskID: "dup", Agent: "ok"},
		{TaskID: "dup", Agent: "ghost"},
	}

	results := p.Batch(context.Background(), tasks, map[string]any{})
	require.Len(t, results, 1)

	// First occurrence wins; the duplicate is dropped, not dispatched.
	assert.Equal(t, schema.TaskStatusCompleted, schema.ResultStatus(results["dup"].Result))
	assert.Equal(t, "ok", results["dup"].Agent)
}

func TestParallel_EmptyBatch(t *testing.T) {
	pool := NewWorkerPool(2)
	defer pool.Shutdown()
	p := newTestParallel(t, agents.NewRegistry(), pool)

	results := p.Batch(context.Background(), nil, map[string]any{})
	assert.Empty(t, results)
}

func TestParallel_ShutdownPoolFoldsFailures(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))

	pool := NewWorkerPool(2)
	pool.Shutdown()
	p := newTestParallel(t, reg, pool)

	results := p.Batch(context.Background(), []schema.TaskSpec{{TaskID: "t", Agent: "ok"}}, map[string]any{})
	require.Len(t, results, 1)
	assert.Equal(t, schema.TaskStatusFailed, schema.ResultStatus(results["t"].Result))
}
