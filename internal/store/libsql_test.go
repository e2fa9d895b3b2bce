package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/agentflow/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func sampleStoredDefinition(name string) *StoredDefinition {
	return &StoredDefinition{
		Name: name,
		Definition: schema.WorkflowDefinition{
			Name:     name,
			Category: "support",
			Tasks: []schema.TaskSpec{
				{TaskID: "triage", Agent: "classifier", Input: map[string]any{"q": "${input.q}"}},
			},
		},
		InputSchema: json.RawMessage(`{"type":"object"}`),
	}
}

// --- Definition tests ---

func TestSaveAndGetDefinition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDefinition(ctx, sampleStoredDefinition("ticket_flow")))

	got, err := s.GetDefinition(ctx, "ticket_flow")
	require.NoError(t, err)
	assert.Equal(t, "ticket_flow", got.Name)
	assert.Equal(t, "classifier", got.Definition.Tasks[0].Agent)
	assert.JSONEq(t, `{"type":"object"}`, string(got.InputSchema))
	assert.EqualValues(t, 0, got.RunCount)
}

func TestSaveDefinitionUpserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDefinition(ctx, sampleStoredDefinition("flow")))

	updated := sampleStoredDefinition("flow")
	updated.Definition.Tasks[0].Agent = "router"
	require.NoError(t, s.SaveDefinition(ctx, updated))

	got, err := s.GetDefinition(ctx, "flow")
	require.NoError(t, err)
	assert.Equal(t, "router", got.Definition.Tasks[0].Agent)

	defs, err := s.ListDefinitions(ctx, DefinitionFilter{})
	require.NoError(t, err)
	assert.Len(t, defs, 1)
}

func TestGetDefinitionNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetDefinition(context.Background(), "nope")
	require.Error(t, err)

	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}

func TestListDefinitionsByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDefinition(ctx, sampleStoredDefinition("a_flow")))

	other := sampleStoredDefinition("b_flow")
	other.Definition.Category = "ops"
	require.NoError(t, s.SaveDefinition(ctx, other))

	defs, err := s.ListDefinitions(ctx, DefinitionFilter{Category: "support"})
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "a_flow", defs[0].Name)
}

func TestDeleteDefinition(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDefinition(ctx, sampleStoredDefinition("doomed")))
	require.NoError(t, s.DeleteDefinition(ctx, "doomed"))

	_, err := s.GetDefinition(ctx, "doomed")
	assert.Error(t, err)

	assert.Error(t, s.DeleteDefinition(ctx, "doomed"))
}

func TestTouchDefinitionIncrementsRunCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveDefinition(ctx, sampleStoredDefinition("busy")))
	require.NoError(t, s.TouchDefinition(ctx, "busy"))
	require.NoError(t, s.TouchDefinition(ctx, "busy"))

	got, err := s.GetDefinition(ctx, "busy")
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.RunCount)

	assert.Error(t, s.TouchDefinition(ctx, "missing"))
}

// --- Scheduled job tests ---

func TestScheduledJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	job := &ScheduledJob{
		ID:             uuid.New().String(),
		Workflow:       "nightly_digest",
		CronExpression: "0 3 * * *",
		Input:          json.RawMessage(`{"mode":"full"}`),
		Enabled:        true,
	}
	require.NoError(t, s.CreateScheduledJob(ctx, job))

	got, err := s.GetScheduledJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly_digest", got.Workflow)
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastRunAt)

	now := time.Now().UTC().Truncate(time.Second)
	disabled := false
	require.NoError(t, s.UpdateScheduledJob(ctx, job.ID, ScheduledJobUpdate{
		Enabled:       &disabled,
		LastRunAt:     &now,
		LastRunStatus: schema.RunStatusCompleted,
	}))

	got, err = s.GetScheduledJob(ctx, job.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	assert.Equal(t, schema.RunStatusCompleted, got.LastRunStatus)
	require.NotNil(t, got.LastRunAt)

	require.NoError(t, s.DeleteScheduledJob(ctx, job.ID))
	_, err = s.GetScheduledJob(ctx, job.ID)
	assert.Error(t, err)
}

func TestCreateScheduledJobValidation(t *testing.T) {
	s := newTestStore(t)

	err := s.CreateScheduledJob(context.Background(), &ScheduledJob{ID: "x"})
	assert.Error(t, err)
}

func TestListScheduledJobsEnabledFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, enabled := range []bool{true, false, true} {
		require.NoError(t, s.CreateScheduledJob(ctx, &ScheduledJob{
			ID:             uuid.New().String(),
			Workflow:       "w",
			CronExpression: "* * * * *",
			Enabled:        enabled,
		}))
	}

	on := true
	jobs, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{Enabled: &on})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	all, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// --- Run archive tests ---

func TestArchiveAndListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, status := range []string{schema.RunStatusCompleted, schema.RunStatusFailed, schema.RunStatusCompleted} {
		require.NoError(t, s.ArchiveRun(ctx, &ArchivedRun{
			RunID:       uuid.New().String(),
			Workflow:    "flow",
			Status:      status,
			Record:      json.RawMessage(`{"output":"x"}`),
			DurationMs:  int64(100 * (i + 1)),
			CompletedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(ctx, RunFilter{Workflow: "flow"})
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first.
	assert.True(t, runs[0].CompletedAt.After(runs[2].CompletedAt))

	failed, err := s.ListRuns(ctx, RunFilter{Status: schema.RunStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 1)

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	got, err := s.GetRun(ctx, runs[0].RunID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"x"}`, string(got.Record))
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	require.Error(t, err)

	var fe *schema.FlowError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, schema.ErrCodeNotFound, fe.Code)
}
