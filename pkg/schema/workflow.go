package schema

// WorkflowDefinition is the JSON-serializable workflow format.
// A workflow is an ordered sequence of tasks with data dependencies on
// prior task outputs, expressed via ${path} references in task inputs.
// Definitions are immutable once registered; updates replace them wholesale.
type WorkflowDefinition struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Tasks       []TaskSpec     `json:"tasks"`
	OutputVar   string         `json:"output_var,omitempty"` // context key used as final output; empty = full results map
	Category    string         `json:"category,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// TaskSpec describes a single task in a workflow.
type TaskSpec struct {
	TaskID            string `json:"task_id"`
	Agent             string `json:"agent"`
	Input             any    `json:"input,omitempty"`               // template: strings/maps/slices, may contain ${path} references
	ContinueOnFailure bool   `json:"continue_on_failure,omitempty"` // keep iterating past this task's failure
	Condition         string `json:"condition,omitempty"`           // CEL guard, evaluated before dispatch; empty = always run
	Description       string `json:"description,omitempty"`
}

// TaskIDs returns the task IDs of the definition in declared order.
func (d *WorkflowDefinition) TaskIDs() []string {
	ids := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		ids = append(ids, t.TaskID)
	}
	return ids
}

// Validate performs the structural checks the engine relies on:
// at least one task, non-empty task IDs and agent names, and task ID
// uniqueness within the definition. Agent availability is not checked
// here; agents may be registered after the workflow is.
func (d *WorkflowDefinition) Validate() error {
	if len(d.Tasks) == 0 {
		return NewError(ErrCodeValidation, "workflow has no tasks")
	}
	seen := make(map[string]struct{}, len(d.Tasks))
	for i, t := range d.Tasks {
		if t.TaskID == "" {
			return NewErrorf(ErrCodeValidation, "task %d has empty task_id", i)
		}
		if t.Agent == "" {
			return NewErrorf(ErrCodeValidation, "task %q has empty agent", t.TaskID)
		}
		if _, dup := seen[t.TaskID]; dup {
			return NewErrorf(ErrCodeValidation, "duplicate task_id %q", t.TaskID)
		}
		seen[t.TaskID] = struct{}{}
	}
	return nil
}
