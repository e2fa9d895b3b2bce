package schema

// Event type constants for run lifecycle streaming.
const (
	EventRunStarted   = "run_started"
	EventRunCompleted = "run_completed"
	EventRunFailed    = "run_failed"

	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"
	EventTaskSkipped   = "task_skipped"

	EventParallelStarted   = "parallel_started"
	EventParallelCompleted = "parallel_completed"
)
