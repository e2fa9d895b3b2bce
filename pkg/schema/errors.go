package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeAgentUnavailable = "AGENT_UNAVAILABLE"
	ErrCodeExecution        = "EXECUTION_ERROR"
	ErrCodeInterpolation    = "INTERPOLATION_ERROR"
	ErrCodeCondition        = "CONDITION_ERROR"
	ErrCodeStore            = "STORE_ERROR"
)

// FlowError is the structured error type for all agentflow operations.
type FlowError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	TaskID  string         `json:"task_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *FlowError) Error() string {
	if e.TaskID != "" {
		return fmt.Sprintf("[%s] task %s: %s", e.Code, e.TaskID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithTask attaches a task ID to the error.
func (e *FlowError) WithTask(taskID string) *FlowError {
	e.TaskID = taskID
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}
