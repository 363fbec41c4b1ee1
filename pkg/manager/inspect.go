package manager

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// maxActiveListed bounds ListActive.
const maxActiveListed = 1000

// StatusReport is what a caller sees when polling a job.
// Unavailable is set when the result store could not be read; State is
// then empty and says nothing about the job.
type StatusReport struct {
	JobID       string          `json:"job_id"`
	State       core.State      `json:"state,omitempty"`
	Progress    *core.Progress  `json:"progress,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	WorkerID    string          `json:"worker_id,omitempty"`
	Unavailable string          `json:"unavailable,omitempty"`
}

// Terminal reports whether the job has finished.
func (r StatusReport) Terminal() bool {
	return r.State.Terminal()
}

// Status reads the job's status. A job with no record is PENDING.
func (m *Manager) Status(ctx context.Context, jobID string) StatusReport {
	report := StatusReport{JobID: jobID}

	rec, err := m.results.GetStatus(ctx, jobID)
	if err != nil {
		report.Unavailable = core.Transport("get status", err).Error()
		return report
	}
	if rec == nil {
		report.State = core.StatePending
		return report
	}

	report.State = rec.State
	report.WorkerID = rec.WorkerID
	switch rec.State {
	case core.StateSuccess:
		report.Result = rec.Result
	case core.StateFailure:
		report.Error = rec.Error
	case core.StateRevoked:
		// no payload
	default:
		report.Progress = rec.Progress
	}
	return report
}

// ActiveJob is a job currently executing on a worker.
type ActiveJob struct {
	ID        string          `json:"id"`
	Kind      core.Kind       `json:"kind"`
	WorkerID  string          `json:"worker_id"`
	Args      json.RawMessage `json:"args"`
	StartedAt *time.Time      `json:"started_at,omitempty"`
}

// ActiveReport lists running jobs. Error is set if the broker was unreachable.
type ActiveReport struct {
	Jobs  []ActiveJob `json:"jobs"`
	Error string      `json:"error,omitempty"`
}

// ListActive returns jobs claimed by a worker. Queued jobs are not included.
func (m *Manager) ListActive(ctx context.Context) ActiveReport {
	jobs, err := m.broker.GetJobsByStatus(ctx, core.StatusClaimed, maxActiveListed)
	if err != nil {
		return ActiveReport{Jobs: []ActiveJob{}, Error: core.Transport("list active", err).Error()}
	}

	report := ActiveReport{Jobs: make([]ActiveJob, 0, len(jobs))}
	for _, j := range jobs {
		report.Jobs = append(report.Jobs, ActiveJob{
			ID:        j.ID,
			Kind:      j.Kind,
			WorkerID:  j.LockedBy,
			Args:      j.Args,
			StartedAt: j.StartedAt,
		})
	}
	return report
}

// WorkerSummary describes one live worker.
type WorkerSummary struct {
	ID          string    `json:"id"`
	Hostname    string    `json:"hostname"`
	PID         int       `json:"pid"`
	ActiveTasks int       `json:"active_tasks"`
	PoolSize    int       `json:"pool_size"`
	Processed   int64     `json:"processed"`
	LastSeenAt  time.Time `json:"last_seen_at"`
}

// WorkerStats aggregates the worker pool. Error is set if the registry was
// unreachable.
type WorkerStats struct {
	Workers     []WorkerSummary `json:"workers"`
	WorkerCount int             `json:"worker_count"`
	ActiveTasks int             `json:"active_tasks"`
	Error       string          `json:"error,omitempty"`
}

// WorkerStats summarises workers that heartbeated recently.
func (m *Manager) WorkerStats(ctx context.Context) WorkerStats {
	stats := WorkerStats{Workers: []WorkerSummary{}}
	if m.workers == nil {
		stats.Error = "jobs: worker registry not configured"
		return stats
	}

	infos, err := m.workers.ListWorkers(ctx, m.now().Add(-m.staleAfter))
	if err != nil {
		stats.Error = core.Transport("worker stats", err).Error()
		return stats
	}

	for _, w := range infos {
		stats.Workers = append(stats.Workers, WorkerSummary{
			ID:          w.ID,
			Hostname:    w.Hostname,
			PID:         w.PID,
			ActiveTasks: w.Active,
			PoolSize:    w.Concurrency,
			Processed:   w.Processed,
			LastSeenAt:  w.LastSeenAt,
		})
		stats.ActiveTasks += w.Active
	}
	stats.WorkerCount = len(stats.Workers)
	return stats
}

// Wait polls until the job is terminal or maxWait elapses. It never
// cancels the job; on timeout it logs a warning and returns false.
func (m *Manager) Wait(ctx context.Context, jobID string, interval, maxWait time.Duration) (StatusReport, bool) {
	return m.Watch(ctx, jobID, interval, maxWait, nil)
}

// Watch is Wait with a callback invoked after every poll.
func (m *Manager) Watch(ctx context.Context, jobID string, interval, maxWait time.Duration, fn func(StatusReport)) (StatusReport, bool) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var deadline <-chan time.Time
	if maxWait > 0 {
		timer := time.NewTimer(maxWait)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := m.Status(ctx, jobID)
		if fn != nil {
			fn(report)
		}
		if report.Terminal() {
			return report, true
		}

		select {
		case <-ctx.Done():
			return report, false
		case <-deadline:
			m.logger.Warn("timed out waiting for job", "job_id", jobID, "max_wait", maxWait, "state", report.State)
			return report, false
		case <-ticker.C:
		}
	}
}
