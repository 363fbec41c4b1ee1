package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	intctx "github.com/jdziat/portfolio-jobs/pkg/internal/context"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
	"github.com/jdziat/portfolio-jobs/pkg/registry"
	"github.com/jdziat/portfolio-jobs/pkg/security"
)

// Worker claims jobs from the broker and runs them.
type Worker struct {
	manager *manager.Manager
	config  WorkerConfig
	logger  *slog.Logger
	wg      sync.WaitGroup

	startedAt time.Time
	active    atomic.Int64
	processed atomic.Int64
}

// NewWorker creates a new worker that takes jobs submitted through m.
func NewWorker(m *manager.Manager, opts ...WorkerOption) *Worker {
	config := WorkerConfig{
		PollInterval:        DefaultPollInterval,
		SoftTimeLimit:       DefaultSoftTimeLimit,
		HardTimeLimit:       DefaultHardTimeLimit,
		LockDuration:        DefaultLockDuration,
		HeartbeatInterval:   DefaultHeartbeatInterval,
		RevokeCheckInterval: DefaultRevokeCheckInterval,
		RegistryInterval:    DefaultRegistryInterval,
		AbandonGrace:        DefaultAbandonGrace,
	}

	for _, opt := range opts {
		opt.ApplyWorker(&config)
	}

	if config.Queues == nil {
		config.Queues = map[string]int{"default": 4}
	}
	if config.WorkerID == "" {
		config.WorkerID = defaultWorkerID()
	}
	if config.StorageRetry == nil {
		defaultCfg := DefaultRetryConfig()
		config.StorageRetry = &defaultCfg
	}
	if config.DequeueRetry == nil {
		dequeueCfg := dequeueRetryConfig()
		config.DequeueRetry = &dequeueCfg
	}

	logger := config.Logger
	if logger == nil {
		logger = m.Logger()
	}

	return &Worker{
		manager: m,
		config:  config,
		logger:  logger.With("worker_id", config.WorkerID),
	}
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.New().String()[:8])
}

// ID returns the worker ID.
func (w *Worker) ID() string { return w.config.WorkerID }

// Config returns the effective configuration.
func (w *Worker) Config() WorkerConfig { return w.config }

// Start claims and runs jobs until ctx is cancelled. It then stops
// claiming, waits for running jobs to finish and returns ctx.Err().
func (w *Worker) Start(ctx context.Context) error {
	queues := make([]string, 0, len(w.config.Queues))
	totalConcurrency := 0
	for q, c := range w.config.Queues {
		queues = append(queues, q)
		totalConcurrency += c
	}
	sort.Strings(queues)

	w.startedAt = time.Now()
	slots := make(chan struct{}, totalConcurrency)

	// Running jobs outlive ctx so they can record their outcome.
	jobCtx := context.WithoutCancel(ctx)

	regCtx, stopRegistry := context.WithCancel(jobCtx)
	regDone := make(chan struct{})
	go func() {
		defer close(regDone)
		w.runRegistryHeartbeat(regCtx, totalConcurrency)
	}()

	w.logger.Info("worker started", "queues", queues, "concurrency", totalConcurrency,
		"soft_time_limit", w.config.SoftTimeLimit, "hard_time_limit", w.config.HardTimeLimit)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopping, waiting for running jobs", "active", w.active.Load())
			w.wg.Wait()
			stopRegistry()
			<-regDone
			return ctx.Err()
		case <-ticker.C:
			for w.claimNext(ctx, jobCtx, queues, slots) {
			}
		}
	}
}

// claimNext takes a free slot and claims one job into it. It returns false
// when there is no free slot or nothing to claim.
func (w *Worker) claimNext(pollCtx, jobCtx context.Context, queues []string, slots chan struct{}) bool {
	select {
	case slots <- struct{}{}:
	default:
		return false
	}

	job, err := w.dequeueWithRetry(pollCtx, queues)
	if err != nil || job == nil {
		<-slots
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error("failed to dequeue after retries", "error", err)
		}
		return false
	}

	w.wg.Add(1)
	w.active.Add(1)
	go func() {
		defer func() {
			w.active.Add(-1)
			<-slots
			w.wg.Done()
		}()
		w.processJob(jobCtx, job)
	}()
	return true
}

// dequeueWithRetry attempts to dequeue a job with exponential backoff on failure.
func (w *Worker) dequeueWithRetry(ctx context.Context, queues []string) (*core.Job, error) {
	var job *core.Job
	err := retryWithBackoff(ctx, *w.config.DequeueRetry, func() error {
		var dequeueErr error
		job, dequeueErr = w.manager.Broker().Dequeue(ctx, queues, w.config.WorkerID, w.config.LockDuration)
		return dequeueErr
	})
	return job, err
}

// outcome is the terminal result of one execution.
type outcome struct {
	state  core.State
	result json.RawMessage
	err    error
}

func (w *Worker) processJob(ctx context.Context, job *core.Job) {
	startTime := time.Now()
	log := w.logger.With("job_id", job.ID, "kind", job.Kind)

	h, ok := w.manager.Registry().Get(job.Kind)
	if !ok {
		err := &core.UnknownJobError{Name: string(job.Kind)}
		log.Error("no handler for job")
		w.finish(ctx, job, outcome{state: core.StateFailure, err: err}, startTime)
		return
	}

	err := w.saveStatus(ctx, &core.StatusRecord{
		JobID:    job.ID,
		Kind:     job.Kind,
		State:    core.StateProgress,
		WorkerID: w.config.WorkerID,
	})
	if errors.Is(err, core.ErrStateRegression) {
		// Someone already recorded an outcome; nothing left to run.
		log.Warn("job already finished, skipping")
		w.ack(ctx, job)
		return
	}
	if err != nil {
		log.Error("failed to record job start", "error", err)
	}

	w.manager.CallStartHooks(ctx, job)
	w.manager.Emit(&core.JobStarted{Job: job, WorkerID: w.config.WorkerID, Timestamp: startTime})
	log.Info("job started")

	out := w.run(ctx, job, h, log)
	w.finish(ctx, job, out, startTime)
}

// run executes the handler under the job's time limits while watching for
// revocation, renewing the claim and persisting progress.
func (w *Worker) run(ctx context.Context, job *core.Job, h registry.Handler, log *slog.Logger) outcome {
	execCtx, cancelExec := context.WithCancelCause(ctx)
	defer cancelExec(nil)
	execCtx, cancelTimeout := context.WithTimeoutCause(execCtx, w.config.HardTimeLimit, core.ErrHardTimeLimit)
	defer cancelTimeout()

	monitorCtx, stopMonitors := context.WithCancel(ctx)
	var monitors sync.WaitGroup

	progress := newProgressSink()
	monitors.Add(4)
	go func() { defer monitors.Done(); w.runHeartbeat(monitorCtx, job) }()
	go func() { defer monitors.Done(); w.watchRevoke(monitorCtx, job, cancelExec) }()
	go func() { defer monitors.Done(); w.flushProgress(monitorCtx, job, progress) }()
	go func() { defer monitors.Done(); w.watchSoftLimit(monitorCtx, log) }()

	jc := &intctx.JobContext{
		Job:          job,
		WorkerID:     w.config.WorkerID,
		Progress:     progress.report,
		SoftDeadline: time.Now().Add(w.config.SoftTimeLimit),
	}

	done := make(chan outcome, 1)
	go func() {
		result, err := w.executeHandler(intctx.WithJobContext(execCtx, jc), job, h)
		done <- outcome{result: result, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-execCtx.Done():
		select {
		case out = <-done:
		case <-time.After(w.config.AbandonGrace):
			log.Error("handler did not stop after cancellation, abandoning it", "cause", context.Cause(execCtx))
			out = outcome{err: context.Cause(execCtx)}
		}
	}

	stopMonitors()
	monitors.Wait()

	if out.err == nil {
		out.state = core.StateSuccess
		return out
	}

	out.result = nil
	switch cause := context.Cause(execCtx); {
	case errors.Is(cause, core.ErrRevoked):
		out.state = core.StateRevoked
		out.err = core.ErrRevoked
	case errors.Is(cause, core.ErrHardTimeLimit):
		out.state = core.StateFailure
		out.err = core.ErrHardTimeLimit
	default:
		out.state = core.StateFailure
	}
	return out
}

func (w *Worker) executeHandler(ctx context.Context, job *core.Job, h registry.Handler) (result json.RawMessage, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Execute(ctx, job.Args)
}

// finish records the outcome, releases the claim and notifies listeners.
func (w *Worker) finish(ctx context.Context, job *core.Job, out outcome, startTime time.Time) {
	log := w.logger.With("job_id", job.ID, "kind", job.Kind, "state", out.state)

	rec := &core.StatusRecord{
		JobID:    job.ID,
		Kind:     job.Kind,
		State:    out.state,
		Result:   out.result,
		WorkerID: w.config.WorkerID,
	}
	if out.state == core.StateFailure && out.err != nil {
		rec.Error = security.SanitizeErrorMessage(out.err.Error())
	}
	if err := w.saveStatus(ctx, rec); err != nil {
		log.Error("failed to record job outcome", "error", err)
	}

	w.ack(ctx, job)
	w.processed.Add(1)

	duration := time.Since(startTime)
	switch out.state {
	case core.StateSuccess:
		log.Info("job succeeded", "duration", duration)
		w.manager.CallCompleteHooks(ctx, job)
		w.manager.Emit(&core.JobSucceeded{Job: job, Duration: duration, Timestamp: time.Now()})
	case core.StateRevoked:
		log.Info("job revoked", "duration", duration)
		w.manager.CallRevokeHooks(ctx, job.ID)
		w.manager.Emit(&core.JobRevoked{JobID: job.ID, Timestamp: time.Now()})
	default:
		log.Warn("job failed", "duration", duration, "error", out.err)
		w.manager.CallFailHooks(ctx, job, out.err)
		w.manager.Emit(&core.JobFailed{Job: job, Error: out.err, Timestamp: time.Now()})
	}
}

func (w *Worker) saveStatus(ctx context.Context, rec *core.StatusRecord) error {
	return retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		return w.manager.Results().SaveStatus(ctx, rec)
	})
}

func (w *Worker) ack(ctx context.Context, job *core.Job) {
	err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
		return w.manager.Broker().Ack(ctx, job.ID, w.config.WorkerID)
	})
	if err != nil {
		w.logger.Error("failed to ack job", "job_id", job.ID, "error", err)
	}
}

// runHeartbeat renews the claim so the reaper leaves the job alone.
func (w *Worker) runHeartbeat(ctx context.Context, job *core.Job) {
	ticker := time.NewTicker(w.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := retryWithBackoff(ctx, *w.config.StorageRetry, func() error {
				return w.manager.Broker().Heartbeat(ctx, job.ID, w.config.WorkerID, w.config.LockDuration)
			})
			if err != nil && ctx.Err() == nil {
				w.logger.Warn("heartbeat failed after retries", "job_id", job.ID, "error", err)
			}
		}
	}
}

// watchRevoke cancels the handler once a revoke is requested.
func (w *Worker) watchRevoke(ctx context.Context, job *core.Job, cancel context.CancelCauseFunc) {
	ticker := time.NewTicker(w.config.RevokeCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			requested, err := w.manager.Broker().RevokeRequested(ctx, job.ID)
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Debug("revoke check failed", "job_id", job.ID, "error", err)
				}
				continue
			}
			if requested {
				w.logger.Info("revoke received", "job_id", job.ID)
				cancel(core.ErrRevoked)
				return
			}
		}
	}
}

func (w *Worker) watchSoftLimit(ctx context.Context, log *slog.Logger) {
	timer := time.NewTimer(w.config.SoftTimeLimit)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
		log.Warn("soft time limit exceeded", "soft_time_limit", w.config.SoftTimeLimit)
	}
}

// progressSink keeps only the latest report; the flusher persists it.
type progressSink struct {
	mu     sync.Mutex
	latest *core.Progress
	signal chan struct{}
}

func newProgressSink() *progressSink {
	return &progressSink{signal: make(chan struct{}, 1)}
}

func (s *progressSink) report(p core.Progress) {
	s.mu.Lock()
	s.latest = &p
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *progressSink) take() *core.Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.latest
	s.latest = nil
	return p
}

// flushProgress writes progress reports in order. Handlers never wait on
// it, so a handler holding a database transaction cannot block itself.
func (w *Worker) flushProgress(ctx context.Context, job *core.Job, sink *progressSink) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sink.signal:
			p := sink.take()
			if p == nil {
				continue
			}
			err := w.manager.Results().SaveStatus(ctx, &core.StatusRecord{
				JobID:    job.ID,
				Kind:     job.Kind,
				State:    core.StateProgress,
				Progress: p,
				WorkerID: w.config.WorkerID,
			})
			if err != nil {
				if ctx.Err() == nil {
					w.logger.Debug("progress write failed", "job_id", job.ID, "error", err)
				}
				continue
			}
			w.manager.Emit(&core.JobProgressed{JobID: job.ID, Progress: *p, Timestamp: time.Now()})
		}
	}
}

// runRegistryHeartbeat publishes this worker's stats until ctx is done,
// then removes its row.
func (w *Worker) runRegistryHeartbeat(ctx context.Context, poolSize int) {
	reg := w.manager.Workers()
	if reg == nil {
		return
	}
	host, _ := os.Hostname()

	publish := func() {
		err := reg.UpsertWorker(ctx, &core.WorkerInfo{
			ID:          w.config.WorkerID,
			Hostname:    host,
			PID:         os.Getpid(),
			Concurrency: poolSize,
			Active:      int(w.active.Load()),
			Processed:   w.processed.Load(),
			StartedAt:   w.startedAt,
			LastSeenAt:  time.Now(),
		})
		if err != nil && ctx.Err() == nil {
			w.logger.Warn("worker heartbeat failed", "error", err)
		}
	}

	publish()
	ticker := time.NewTicker(w.config.RegistryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			if err := reg.RemoveWorker(cleanupCtx, w.config.WorkerID); err != nil {
				w.logger.Warn("failed to deregister worker", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			publish()
		}
	}
}
