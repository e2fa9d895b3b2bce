package agents

import (
	"context"
	"sync"
	"time"

	"github.com/rendis/agentflow/pkg/schema"
)

// MemoryEntry is one recorded agent interaction.
type MemoryEntry struct {
	Task      map[string]any    `json:"task"`
	Result    schema.TaskResult `json:"result"`
	Timestamp time.Time         `json:"timestamp"`
}

// Memory is a fixed-capacity ring buffer of agent interactions. When full,
// new entries evict the oldest. Thread-safe.
type Memory struct {
	mu      sync.RWMutex
	entries []MemoryEntry
	head    int
	size    int
}

// NewMemory creates a Memory holding at most capacity entries.
// Capacity must be positive; non-positive values fall back to 1.
func NewMemory(capacity int) *Memory {
	if capacity < 1 {
		capacity = 1
	}
	return &Memory{entries: make([]MemoryEntry, capacity)}
}

// Remember records an interaction, evicting the oldest entry when full.
func (m *Memory) Remember(task map[string]any, result schema.TaskResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.head] = MemoryEntry{Task: task, Result: result, Timestamp: time.Now()}
	m.head = (m.head + 1) % len(m.entries)
	if m.size < len(m.entries) {
		m.size++
	}
}

// Recent returns up to n entries, newest first.
func (m *Memory) Recent(n int) []MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if n > m.size {
		n = m.size
	}
	if n <= 0 {
		return nil
	}

	out := make([]MemoryEntry, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.head - i + len(m.entries)) % len(m.entries)
		out = append(out, m.entries[idx])
	}
	return out
}

// Len returns the number of entries currently held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}

// recordingAgent wraps an Agent and records every execution into a Memory.
type recordingAgent struct {
	inner  Agent
	memory *Memory
}

// WithMemory wraps an agent so its executions are recorded in a ring
// buffer of the given capacity. The returned Memory is shared with the
// wrapper and can be queried at any time.
func WithMemory(agent Agent, capacity int) (Agent, *Memory) {
	mem := NewMemory(capacity)
	return &recordingAgent{inner: agent, memory: mem}, mem
}

func (a *recordingAgent) Name() string    { return a.inner.Name() }
func (a *recordingAgent) Info() AgentInfo { return a.inner.Info() }

func (a *recordingAgent) Execute(ctx context.Context, task map[string]any) (schema.TaskResult, error) {
	result, err := a.inner.Execute(ctx, task)
	if err == nil {
		a.memory.Remember(task, result)
	}
	return result, err
}
