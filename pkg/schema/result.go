package schema

import "time"

// TaskResult is the value returned by an agent's capability call.
// Beyond "status" (and "error" on failure) the fields are agent-specific
// and opaque to the orchestration core.
type TaskResult = map[string]any

// Task status values agents report in a TaskResult.
const (
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
	TaskStatusSkipped   = "skipped"
)

// ResultStatus extracts the "status" field of a TaskResult, or "" if absent.
func ResultStatus(r TaskResult) string {
	s, _ := r["status"].(string)
	return s
}

// ResultError extracts the "error" field of a TaskResult, or "" if absent.
func ResultError(r TaskResult) string {
	s, _ := r["error"].(string)
	return s
}

// FailedResult builds the synthesized TaskResult used for failures the
// orchestrator reports on behalf of an agent (e.g. missing registration,
// an agent call returning an error, or a panic inside the call).
func FailedResult(message string) TaskResult {
	return TaskResult{"status": TaskStatusFailed, "error": message}
}

// SkippedResult builds the TaskResult recorded when a task's condition
// guard evaluates to false and the agent is never invoked.
func SkippedResult(reason string) TaskResult {
	return TaskResult{"status": TaskStatusSkipped, "reason": reason}
}

// TaskExecution annotates one task's result within an execution record.
type TaskExecution struct {
	Agent     string        `json:"agent"`
	Result    TaskResult    `json:"result"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Workflow run status values.
const (
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ExecutionRecord is the outcome of a single workflow run.
// A run that halted early on a task failure still reports
// RunStatusCompleted, with the failure visible in Results; only
// orchestration-level faults flip the status to RunStatusFailed.
type ExecutionRecord struct {
	RunID         string                    `json:"run_id"`
	Workflow      string                    `json:"workflow"`
	Status        string                    `json:"status"`
	Results       map[string]*TaskExecution `json:"results,omitempty"`
	Output        any                       `json:"output,omitempty"`
	Error         string                    `json:"error,omitempty"`
	ExecutionTime time.Duration             `json:"execution_time"`
	CompletedAt   time.Time                 `json:"completed_at"`
}

// LedgerEntry is one append-only line of the execution ledger, used
// solely for aggregate statistics and recent-history queries.
type LedgerEntry struct {
	Workflow  string        `json:"workflow"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
	Status    string        `json:"status"`
}

// LedgerStats summarizes the full ledger history.
type LedgerStats struct {
	Total           int           `json:"total_executions"`
	Successful      int           `json:"successful_executions"`
	Failed          int           `json:"failed_executions"`
	SuccessRate     float64       `json:"success_rate"`
	AverageDuration time.Duration `json:"avg_duration"`
}
