package expressions

import (
	"encoding/json"
	"sort"

	"github.com/rendis/agentflow/pkg/schema"
)

// InputKey is the reserved context key holding the caller-supplied input.
const InputKey = "input"

// ExecutionContext accumulates the data available for variable resolution
// during one workflow run: the original input plus every completed task's
// result keyed by task ID.
//
// A context is owned exclusively by a single run. The sequential runner is
// the only writer and tasks never run while it writes, so no locking is
// needed; parallel batches read an immutable Snapshot instead of the live
// map.
type ExecutionContext struct {
	values map[string]any
}

// NewExecutionContext creates a fresh context seeded with the initial input.
func NewExecutionContext(input any) *ExecutionContext {
	return &ExecutionContext{
		values: map[string]any{InputKey: input},
	}
}

// Fold records a completed task's result under its task ID. Results are
// stored by reference; agents must not mutate a result after returning it.
func (ec *ExecutionContext) Fold(taskID string, result schema.TaskResult) {
	ec.values[taskID] = map[string]any(result)
}

// Value returns the context entry for key.
func (ec *ExecutionContext) Value(key string) (any, bool) {
	v, ok := ec.values[key]
	return v, ok
}

// Map exposes the live value map for the resolver. Callers must not
// mutate the returned map.
func (ec *ExecutionContext) Map() map[string]any {
	return ec.values
}

// Snapshot returns a deep copy of the current context, safe to share
// read-only across a parallel batch.
func (ec *ExecutionContext) Snapshot() map[string]any {
	return deepCopyMap(ec.values)
}

// Keys returns the context keys in sorted order.
func (ec *ExecutionContext) Keys() []string {
	keys := make([]string, 0, len(ec.values))
	for k := range ec.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// deepCopyMap creates a deep copy of a map[string]any.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

// deepCopyAny recursively deep-copies a value.
// Handles maps, slices, and primitives (which are inherently immutable).
func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		return v
	}
}
