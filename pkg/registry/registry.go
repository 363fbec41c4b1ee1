// Package registry maps job kinds to their handlers.
//
// A Registry is built once and must cover every core.Kind, so dispatching
// an accepted job can never fail for lack of a handler.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/internal/handler"
)

// Handler executes one kind of job.
type Handler interface {
	Kind() core.Kind
	Execute(ctx context.Context, argsJSON []byte) (json.RawMessage, error)
}

// Handle wraps a typed job function. It panics on a nil function, which
// is a programming error caught at startup.
func Handle[A core.Args, R any](fn func(ctx context.Context, args A) (R, error)) Handler {
	h, err := handler.New[A, R](fn)
	if err != nil {
		panic(fmt.Sprintf("registry: %v", err))
	}
	return h
}

// Registry is an immutable kind-to-handler table.
type Registry struct {
	handlers map[core.Kind]Handler
}

// New builds a Registry. Every kind in core.Kinds must have exactly one
// handler.
func New(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[core.Kind]Handler, len(handlers))}
	for _, h := range handlers {
		k := h.Kind()
		if _, dup := r.handlers[k]; dup {
			return nil, fmt.Errorf("%w: %s", core.ErrDuplicateHandler, k)
		}
		r.handlers[k] = h
	}
	for _, k := range core.Kinds() {
		if _, ok := r.handlers[k]; !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingHandler, k)
		}
	}
	return r, nil
}

// Get returns the handler for k.
func (r *Registry) Get(k core.Kind) (Handler, bool) {
	h, ok := r.handlers[k]
	return h, ok
}

// Has reports whether k has a handler.
func (r *Registry) Has(k core.Kind) bool {
	_, ok := r.handlers[k]
	return ok
}
