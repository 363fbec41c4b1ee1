// Package handler adapts typed job functions to the untyped form the
// worker executes.
package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// Func is a typed job function.
type Func[A core.Args, R any] func(ctx context.Context, args A) (R, error)

// Typed wraps a Func. The job kind comes from the args type, so a
// function can only be registered under the kind its arguments belong to.
type Typed[A core.Args, R any] struct {
	fn Func[A, R]
}

// New creates a Typed handler. It fails on a nil function.
func New[A core.Args, R any](fn Func[A, R]) (*Typed[A, R], error) {
	if fn == nil {
		return nil, fmt.Errorf("handler function cannot be nil")
	}
	return &Typed[A, R]{fn: fn}, nil
}

// Kind returns the job kind the handler serves.
func (h *Typed[A, R]) Kind() core.Kind {
	var zero A
	return zero.Kind()
}

// Execute decodes argsJSON, runs the function and encodes its result.
// Empty args decode as the zero value.
func (h *Typed[A, R]) Execute(ctx context.Context, argsJSON []byte) (json.RawMessage, error) {
	var args A
	if len(argsJSON) > 0 && string(argsJSON) != "null" {
		if err := json.Unmarshal(argsJSON, &args); err != nil {
			return nil, fmt.Errorf("failed to unmarshal args: %w", err)
		}
	}

	result, err := h.fn(ctx, args)
	if err != nil {
		return nil, err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return out, nil
}
