package engine

import (
	"sort"
	"sync"

	"github.com/rendis/agentflow/pkg/schema"
)

// WorkflowRegistry holds named workflow definitions. Registering a name
// again replaces the previous definition wholesale. Thread-safe.
type WorkflowRegistry struct {
	mu        sync.RWMutex
	workflows map[string]*schema.WorkflowDefinition
}

// NewWorkflowRegistry creates an empty WorkflowRegistry.
func NewWorkflowRegistry() *WorkflowRegistry {
	return &WorkflowRegistry{
		workflows: make(map[string]*schema.WorkflowDefinition),
	}
}

// Register validates and stores a definition under name.
func (r *WorkflowRegistry) Register(name string, def *schema.WorkflowDefinition) error {
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "workflow name is empty")
	}
	if def == nil {
		return schema.NewError(schema.ErrCodeValidation, "workflow definition is nil")
	}
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.workflows[name] = def
	return nil
}

// Get retrieves a definition by name.
func (r *WorkflowRegistry) Get(name string) (*schema.WorkflowDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.workflows[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not registered", name)
	}
	return def, nil
}

// Remove deletes a definition. Removing an unknown name is a no-op.
func (r *WorkflowRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workflows, name)
}

// Names returns the registered workflow names, sorted.
func (r *WorkflowRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if a workflow is registered.
func (r *WorkflowRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.workflows[name]
	return ok
}

// Count returns the number of registered workflows.
func (r *WorkflowRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}
