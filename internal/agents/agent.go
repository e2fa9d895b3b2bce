package agents

import (
	"context"

	"github.com/rendis/agentflow/pkg/schema"
)

// Agent is a named capability the orchestrator dispatches tasks to.
//
// Execute receives the task input after ${path} resolution and returns a
// TaskResult. Agents report domain failures inside the result (status
// "failed" plus an error message); a non-nil error is reserved for faults
// the agent could not express as a result at all.
type Agent interface {
	Name() string
	Info() AgentInfo
	Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error)
}

// AgentRegistry manages the lifecycle and lookup of available agents.
type AgentRegistry interface {
	Register(agent Agent) error
	Get(name string) (Agent, error)
	List() []AgentInfo
}

// AgentInfo is a summary of a registered agent for listing.
type AgentInfo struct {
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// AgentFunc adapts a plain function into an Agent.
type AgentFunc struct {
	AgentName   string
	Description string
	Fn          func(ctx context.Context, task map[string]any) (schema.TaskResult, error)
}

func (a *AgentFunc) Name() string { return a.AgentName }

func (a *AgentFunc) Info() AgentInfo {
	return AgentInfo{Name: a.AgentName, Description: a.Description}
}

func (a *AgentFunc) Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
	return a.Fn(ctx, task)
}

var _ Agent = (*AgentFunc)(nil)
