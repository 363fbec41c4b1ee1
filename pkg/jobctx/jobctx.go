// Package jobctx provides public access to job context for handlers.
package jobctx

import (
	"context"
	"errors"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	intctx "github.com/jdziat/portfolio-jobs/pkg/internal/context"
)

// JobFromContext returns the current Job from context, or nil if not in a job handler.
func JobFromContext(ctx context.Context) *core.Job {
	jc := intctx.GetJobContext(ctx)
	if jc == nil {
		return nil
	}
	return jc.Job
}

// JobIDFromContext returns the current job ID from context, or empty string if not in a job handler.
func JobIDFromContext(ctx context.Context) string {
	job := JobFromContext(ctx)
	if job == nil {
		return ""
	}
	return job.ID
}

// WorkerIDFromContext returns the ID of the worker running the handler.
func WorkerIDFromContext(ctx context.Context) string {
	jc := intctx.GetJobContext(ctx)
	if jc == nil {
		return ""
	}
	return jc.WorkerID
}

// ReportProgress publishes the handler's progress. The worker persists the
// latest report asynchronously; outside a job handler it is a no-op.
func ReportProgress(ctx context.Context, current, total int, status string) {
	jc := intctx.GetJobContext(ctx)
	if jc == nil || jc.Progress == nil {
		return
	}
	jc.Progress(core.Progress{Current: current, Total: total, Status: status})
}

// SoftDeadline returns when the job's soft time limit expires.
func SoftDeadline(ctx context.Context) (time.Time, bool) {
	jc := intctx.GetJobContext(ctx)
	if jc == nil || jc.SoftDeadline.IsZero() {
		return time.Time{}, false
	}
	return jc.SoftDeadline, true
}

// SoftLimitExceeded reports whether the soft time limit has passed.
// Handlers may use it to stop starting new items.
func SoftLimitExceeded(ctx context.Context) bool {
	d, ok := SoftDeadline(ctx)
	return ok && !time.Now().Before(d)
}

// Revoked reports whether the handler's context was cancelled because the
// job was revoked.
func Revoked(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), core.ErrRevoked)
}

// Stopped returns the reason the handler must stop, or nil to carry on.
// It is the check handlers make right before committing.
func Stopped(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}

// WithJob attaches a job to ctx so a handler can run outside a worker,
// for example inline from the CLI or in tests. report may be nil.
func WithJob(ctx context.Context, job *core.Job, report func(core.Progress)) context.Context {
	return intctx.WithJobContext(ctx, &intctx.JobContext{
		Job:      job,
		Progress: report,
	})
}
