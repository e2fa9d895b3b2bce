package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/agentflow/pkg/schema"
)

// StoredDefinition is a workflow definition persisted across restarts,
// typically registered at runtime via the agentflow.define tool.
type StoredDefinition struct {
	Name        string                    `json:"name"`
	Definition  schema.WorkflowDefinition `json:"definition"`
	InputSchema json.RawMessage           `json:"input_schema,omitempty"`
	RunCount    int64                     `json:"run_count"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// ScheduledJob is a cron-triggered workflow execution.
type ScheduledJob struct {
	ID             string          `json:"id"`
	Workflow       string          `json:"workflow"`
	CronExpression string          `json:"cron_expression"`
	Input          json.RawMessage `json:"input,omitempty"`
	Enabled        bool            `json:"enabled"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	LastRunStatus  string          `json:"last_run_status,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ArchivedRun is the durable record of one workflow run.
type ArchivedRun struct {
	RunID       string          `json:"run_id"`
	Workflow    string          `json:"workflow"`
	Status      string          `json:"status"`
	Record      json.RawMessage `json:"record"`
	DurationMs  int64           `json:"duration_ms"`
	CompletedAt time.Time       `json:"completed_at"`
}

// --- Filter and update types ---

// DefinitionFilter specifies criteria for listing stored definitions.
type DefinitionFilter struct {
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// ScheduledJobUpdate specifies mutable fields of a scheduled job.
type ScheduledJobUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

// ScheduledJobFilter specifies criteria for listing scheduled jobs.
type ScheduledJobFilter struct {
	Enabled *bool `json:"enabled,omitempty"`
	Limit   int   `json:"limit,omitempty"`
}

// RunFilter specifies criteria for listing archived runs.
type RunFilter struct {
	Workflow string     `json:"workflow,omitempty"`
	Status   string     `json:"status,omitempty"`
	Since    *time.Time `json:"since,omitempty"`
	Limit    int        `json:"limit,omitempty"`
}
