package agents

import (
	"sort"
	"sync"

	"github.com/rendis/agentflow/pkg/schema"
)

// Registry is the concrete thread-safe AgentRegistry implementation.
// Re-registering a name replaces the previous agent; callers that need
// stable wiring should register everything once at startup.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Agent
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Agent),
	}
}

// Register adds an agent to the registry, replacing any agent already
// registered under the same name.
func (r *Registry) Register(agent Agent) error {
	if agent == nil {
		return schema.NewError(schema.ErrCodeValidation, "agent is nil")
	}
	name := agent.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "agent name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[name] = agent
	return nil
}

// Get retrieves an agent by name.
func (r *Registry) Get(name string) (Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.agents[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeAgentUnavailable, "agent %q not registered", name)
	}
	return agent, nil
}

// List returns info for all registered agents, sorted by name.
func (r *Registry) List() []AgentInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]AgentInfo, 0, len(r.agents))
	for _, a := range r.agents {
		infos = append(infos, a.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Names returns the registered agent names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for name := range r.agents {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Has checks if an agent is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
