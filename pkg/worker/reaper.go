package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
)

// ErrWorkerLost is recorded for jobs whose worker stopped heartbeating.
var ErrWorkerLost = errors.New("jobs: worker lost")

// Reaper fails claimed jobs whose lock expired. A lost job is never
// requeued: it may have committed part of its work.
type Reaper struct {
	manager  *manager.Manager
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewReaper creates a reaper that checks every interval.
func NewReaper(m *manager.Manager, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = DefaultLockDuration / 2
	}
	return &Reaper{
		manager:  m,
		interval: interval,
		logger:   m.Logger().With("component", "reaper"),
		now:      time.Now,
	}
}

// Start runs the reaper until ctx is cancelled.
func (r *Reaper) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.ReapOnce(ctx); err != nil && ctx.Err() == nil {
				r.logger.Error("reap failed", "error", err)
			}
		}
	}
}

// ReapOnce fails every expired claim and returns how many it reaped.
func (r *Reaper) ReapOnce(ctx context.Context) (int, error) {
	expired, err := r.manager.Broker().ExpiredClaims(ctx, r.now())
	if err != nil {
		return 0, err
	}

	reaped := 0
	for _, job := range expired {
		err := r.manager.Results().SaveStatus(ctx, &core.StatusRecord{
			JobID:    job.ID,
			Kind:     job.Kind,
			State:    core.StateFailure,
			Error:    ErrWorkerLost.Error(),
			WorkerID: job.LockedBy,
		})
		if err != nil && !errors.Is(err, core.ErrStateRegression) {
			r.logger.Error("failed to fail lost job", "job_id", job.ID, "error", err)
			continue
		}
		if err := r.manager.Broker().ReleaseClaim(ctx, job.ID); err != nil {
			r.logger.Error("failed to release lost job", "job_id", job.ID, "error", err)
			continue
		}

		reaped++
		r.logger.Warn("reaped lost job", "job_id", job.ID, "kind", job.Kind, "worker_id", job.LockedBy)
		r.manager.CallFailHooks(ctx, job, ErrWorkerLost)
		r.manager.Emit(&core.JobFailed{Job: job, Error: ErrWorkerLost, Timestamp: r.now()})
	}
	return reaped, nil
}

// Purger periodically removes finished jobs and expired status records.
type Purger struct {
	manager   *manager.Manager
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger
}

// NewPurger creates a purger that runs every interval and keeps finished
// jobs for retention.
func NewPurger(m *manager.Manager, interval, retention time.Duration) *Purger {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Purger{
		manager:   m,
		interval:  interval,
		retention: retention,
		logger:    m.Logger().With("component", "purger"),
	}
}

// Start runs the purger until ctx is cancelled.
func (p *Purger) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			report := p.manager.Purge(ctx, p.retention)
			if report.Error != "" {
				p.logger.Error("purge failed", "error", report.Error)
				continue
			}
			if report.Jobs > 0 || report.Results > 0 {
				p.logger.Info("purged", "jobs", report.Jobs, "results", report.Results)
			}
		}
	}
}

var (
	_ core.Starter = (*Worker)(nil)
	_ core.Starter = (*Reaper)(nil)
	_ core.Starter = (*Purger)(nil)
)
