// Package context provides context helpers for the jobs package.
package context

import (
	"context"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// JobContextKey is the key for storing job context in context.Context.
type JobContextKey struct{}

// JobContext holds the job being executed and the hooks the worker exposes
// to its handler.
type JobContext struct {
	Job      *core.Job
	WorkerID string

	// Progress records the latest progress of the job. It must not block.
	Progress func(p core.Progress)

	// SoftDeadline is when the soft time limit expires. Zero means none.
	SoftDeadline time.Time
}

// GetJobContext retrieves the job context from a context.Context.
func GetJobContext(ctx context.Context) *JobContext {
	if jc, ok := ctx.Value(JobContextKey{}).(*JobContext); ok {
		return jc
	}
	return nil
}

// WithJobContext adds job context to a context.Context.
func WithJobContext(ctx context.Context, jc *JobContext) context.Context {
	return context.WithValue(ctx, JobContextKey{}, jc)
}
