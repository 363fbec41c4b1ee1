package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/registry"
	"github.com/jdziat/portfolio-jobs/pkg/security"
)

// Manager submits, inspects and cancels jobs.
type Manager struct {
	broker   core.Broker
	results  core.ResultStore
	workers  core.WorkerRegistry
	registry *registry.Registry
	logger   *slog.Logger

	staleAfter time.Duration
	now        func() time.Time

	mu sync.RWMutex

	// Hooks
	onStart    []func(context.Context, *core.Job)
	onComplete []func(context.Context, *core.Job)
	onFail     []func(context.Context, *core.Job, error)
	onRevoke   []func(context.Context, string)

	// Event stream
	eventSubs []chan core.Event
}

// New creates a Manager. The broker, result store and registry are
// required; the worker registry is optional (see WithWorkerRegistry).
func New(broker core.Broker, results core.ResultStore, reg *registry.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		broker:     broker,
		results:    results,
		registry:   reg,
		logger:     slog.Default(),
		staleAfter: DefaultWorkerStaleAfter,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt.applyManager(m)
	}
	return m
}

// Broker returns the broker.
func (m *Manager) Broker() core.Broker { return m.broker }

// Results returns the result store.
func (m *Manager) Results() core.ResultStore { return m.results }

// Workers returns the worker registry, or nil.
func (m *Manager) Workers() core.WorkerRegistry { return m.workers }

// Registry returns the handler registry.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Submit enqueues a job and returns its id without waiting for it to run.
// No status record is written; until a worker claims the job its status
// reads as PENDING.
func (m *Manager) Submit(ctx context.Context, args core.Args, opts ...Option) (string, error) {
	if args == nil {
		return "", &core.UnknownJobError{}
	}
	kind := args.Kind()
	if m.registry == nil || !m.registry.Has(kind) {
		return "", &core.UnknownJobError{Name: string(kind)}
	}

	options := NewOptions()
	for _, opt := range opts {
		opt.Apply(options)
	}

	if err := security.ValidateQueueName(options.Queue); err != nil {
		return "", err
	}

	argsBytes, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("jobs: failed to marshal args: %w", err)
	}
	if err := security.ValidateArgsSize(argsBytes); err != nil {
		return "", err
	}

	job := &core.Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Args:        argsBytes,
		Queue:       options.Queue,
		Status:      core.StatusQueued,
		SubmittedAt: m.now(),
	}

	if options.UniqueKey != "" {
		if err := security.ValidateUniqueKey(options.UniqueKey); err != nil {
			return "", err
		}
		if err := m.broker.EnqueueUnique(ctx, job, options.UniqueKey); err != nil {
			if errors.Is(err, core.ErrDuplicateJob) {
				return "", err
			}
			return "", core.Transport("enqueue", err)
		}
	} else if err := m.broker.Enqueue(ctx, job); err != nil {
		return "", core.Transport("enqueue", err)
	}

	m.logger.Debug("job submitted", "job_id", job.ID, "kind", kind, "queue", job.Queue)
	m.Emit(&core.JobSubmitted{Job: job, Timestamp: job.SubmittedAt})
	return job.ID, nil
}

// SubmitNamed submits by job name with JSON arguments. Unknown names fail
// with *core.UnknownJobError and nothing is enqueued.
func (m *Manager) SubmitNamed(ctx context.Context, name string, rawArgs json.RawMessage, opts ...Option) (string, error) {
	kind, err := core.ParseKind(name)
	if err != nil {
		return "", err
	}
	args, err := core.NewArgs(kind)
	if err != nil {
		return "", err
	}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, args); err != nil {
			return "", fmt.Errorf("jobs: invalid args for %s: %w", kind, err)
		}
	}
	return m.Submit(ctx, args, opts...)
}

// Cancel asks for a job to be revoked. A job that is still queued is
// revoked on the spot; a running job is stopped by its worker at the next
// check. It returns true once the request is recorded, even if the job had
// already finished or does not exist, and false only if the broker could
// not be reached.
func (m *Manager) Cancel(ctx context.Context, jobID string) bool {
	prev, err := m.broker.Revoke(ctx, jobID)
	if err != nil {
		m.logger.Error("cancel failed", "job_id", jobID, "error", err)
		return false
	}

	switch prev {
	case core.StatusQueued:
		job, err := m.broker.GetJob(ctx, jobID)
		if err != nil {
			m.logger.Debug("revoked job not readable, recording status without kind", "job_id", jobID, "error", err)
		}
		rec := &core.StatusRecord{JobID: jobID, State: core.StateRevoked}
		if job != nil {
			rec.Kind = job.Kind
		}
		if err := m.results.SaveStatus(ctx, rec); err != nil && !errors.Is(err, core.ErrStateRegression) {
			m.logger.Error("failed to record revoked status", "job_id", jobID, "error", err)
		}
		m.logger.Info("job revoked before start", "job_id", jobID)
		m.Emit(&core.JobRevoked{JobID: jobID, Timestamp: m.now()})
		m.CallRevokeHooks(ctx, jobID)
	case core.StatusClaimed:
		m.logger.Info("revoke requested for running job", "job_id", jobID)
	case "":
		m.logger.Warn("revoke requested for unknown job", "job_id", jobID)
	}
	return true
}

// PurgeReport summarises a retention purge.
type PurgeReport struct {
	Jobs    int64  `json:"jobs"`
	Results int64  `json:"results"`
	Error   string `json:"error,omitempty"`
}

// resultPurger is implemented by result stores that need explicit expiry.
type resultPurger interface {
	PurgeExpiredResults(ctx context.Context, now time.Time) (int64, error)
}

// Purge deletes finished broker rows older than retention and expired
// status records.
func (m *Manager) Purge(ctx context.Context, retention time.Duration) PurgeReport {
	now := m.now()
	var report PurgeReport

	n, err := m.broker.PurgeFinished(ctx, now.Add(-retention))
	if err != nil {
		report.Error = core.Transport("purge jobs", err).Error()
		return report
	}
	report.Jobs = n

	if p, ok := m.results.(resultPurger); ok {
		n, err := p.PurgeExpiredResults(ctx, now)
		if err != nil {
			report.Error = core.Transport("purge results", err).Error()
			return report
		}
		report.Results = n
	}
	return report
}
