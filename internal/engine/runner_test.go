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

func newTestRunner(t *testing.T, reg *agents.Registry) *Runner {
	t.Helper()
	return NewRunner(newTestDispatcher(t, reg), nil, testLogger())
}

func TestRunner_ChainsTaskOutputs(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(&agents.AgentFunc{
		AgentName: "research",
		Fn: func(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
			return schema.TaskResult{"status": schema.TaskStatusCompleted, "summary": "fact sheet"}, nil
		},
	}))
	require.NoError(t, reg.Register(capturingAgent("writer")))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "gather", Agent: "research", Input: map[string]any{"topic": "${input.topic}"}},
			{TaskID: "draft", Agent: "writer", Input: map[string]any{"facts": "${gather.summary}"}},
		},
	}

	results, output, err := newTestRunner(t, reg).Run(context.Background(),
		def, map[string]any{"topic": "pricing"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	received := results["draft"].Result["received"].(map[string]any)
	assert.Equal(t, "fact sheet", received["facts"])

	// No output_var: full map of raw results.
	out := output.(map[string]any)
	assert.Contains(t, out, "gather")
	assert.Contains(t, out, "draft")
}

func TestRunner_HaltsOnFailureByDefault(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))
	require.NoError(t, reg.Register(staticAgent("bad", schema.FailedResult("boom"))))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "one", Agent: "ok"},
			{TaskID: "two", Agent: "bad"},
			{TaskID: "three", Agent: "ok"},
		},
	}

	results, _, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Len(t, results, 2)
	assert.NotContains(t, results, "three")
	assert.Equal(t, schema.TaskStatusFailed, schema.ResultStatus(results["two"].Result))
}

func TestRunner_ContinueOnFailure(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))
	require.NoError(t, reg.Register(staticAgent("bad", schema.FailedResult("boom"))))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "one", Agent: "bad", ContinueOnFailure: true},
			{TaskID: "two", Agent: "ok"},
		},
	}

	results, _, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Len(t, results, 2)
	assert.Equal(t, schema.TaskStatusCompleted, schema.ResultStatus(results["two"].Result))
}

func TestRunner_MissingAgentHaltsLikeFailure(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "one", Agent: "ghost"},
			{TaskID: "two", Agent: "ok"},
		},
	}

	results, _, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Len(t, results, 1)
	assert.Contains(t, schema.ResultError(results["one"].Result), "not found")
}

func TestRunner_SkippedTaskDoesNotHalt(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "guarded", Agent: "ok", Condition: "false"},
			{TaskID: "after", Agent: "ok"},
		},
	}

	results, _, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, schema.TaskStatusSkipped, schema.ResultStatus(results["guarded"].Result))
	assert.Equal(t, schema.TaskStatusCompleted, schema.ResultStatus(results["after"].Result))
}

func TestRunner_OutputVar(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("summarize",
		schema.TaskResult{"status": schema.TaskStatusCompleted, "text": "done"})))

	def := &schema.WorkflowDefinition{
		OutputVar: "final",
		Tasks: []schema.TaskSpec{
			{TaskID: "final", Agent: "summarize"},
		},
	}

	_, output, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	assert.Equal(t, "done", output.(map[string]any)["text"])
}

func TestRunner_OutputVarMissingFallsBackToResults(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))

	def := &schema.WorkflowDefinition{
		OutputVar: "never_produced",
		Tasks:     []schema.TaskSpec{{TaskID: "t", Agent: "ok"}},
	}

	_, output, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	// The named entry was never produced, so the run falls back to the
	// full map of raw task results.
	out, ok := output.(map[string]any)
	require.True(t, ok)
	assert.Contains(t, out, "t")
}

func TestRunner_AgentFaultAbortsRun(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))
	require.NoError(t, reg.Register(&agents.AgentFunc{
		AgentName: "faulty",
		Fn: func(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
			return nil, errors.New("backend exploded")
		},
	}))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "one", Agent: "ok"},
			{TaskID: "two", Agent: "faulty"},
			{TaskID: "three", Agent: "ok"},
		},
	}

	results, output, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend exploded")
	assert.Nil(t, output)

	// Only the tasks that ran before the fault are reported.
	assert.Len(t, results, 1)
	assert.Contains(t, results, "one")
}

func TestRunner_CanceledContext(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(staticAgent("ok", schema.TaskResult{"status": schema.TaskStatusCompleted})))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{{TaskID: "t", Agent: "ok"}},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := newTestRunner(t, reg).Run(ctx, def, nil)
	assert.Error(t, err)
}

func TestRunner_UnresolvedReferenceLeftVerbatim(t *testing.T) {
	reg := agents.NewRegistry()
	require.NoError(t, reg.Register(capturingAgent("writer")))

	def := &schema.WorkflowDefinition{
		Tasks: []schema.TaskSpec{
			{TaskID: "t", Agent: "writer", Input: map[string]any{"ref": "${nope.value}"}},
		},
	}

	results, _, err := newTestRunner(t, reg).Run(context.Background(), def, nil)
	require.NoError(t, err)

	received := results["t"].Result["received"].(map[string]any)
	assert.Equal(t, "${nope.value}", received["ref"])
}
