package expressions

import "context"

// Engine evaluates expressions of a single language against a data scope.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
