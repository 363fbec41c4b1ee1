// Package jobs runs portfolio background jobs: a database-backed broker,
// a result store with monotonic job states, a worker pool and a
// calendar scheduler.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	db, _ := gorm.Open(sqlite.Open("jobs.db"), &gorm.Config{})
//	store := jobs.NewGormStorage(db)
//	store.Migrate(ctx)
//
//	reg, _ := jobs.NewRegistry(
//	    jobs.Handle(func(ctx context.Context, a jobs.UpdatePricesArgs) (*Result, error) { ... }),
//	    ...
//	)
//	m := jobs.NewManager(store, store, reg)
//
//	id, _ := m.Submit(ctx, jobs.UpdatePricesArgs{})
//	go jobs.NewWorker(m).Start(ctx)
//	report, _ := m.Wait(ctx, id, time.Second, time.Minute)
package jobs

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
	"github.com/jdziat/portfolio-jobs/pkg/registry"
	"github.com/jdziat/portfolio-jobs/pkg/schedule"
	"github.com/jdziat/portfolio-jobs/pkg/security"
	"github.com/jdziat/portfolio-jobs/pkg/storage"
	"github.com/jdziat/portfolio-jobs/pkg/worker"
)

type (
	// Job is a job invocation as carried by the broker.
	Job = core.Job

	// JobStatus is the delivery state of a job on the broker.
	JobStatus = core.JobStatus

	// State is the externally visible lifecycle state of a job.
	State = core.State

	// StatusRecord is a job's entry in the result store.
	StatusRecord = core.StatusRecord

	// Progress is a handler's last reported progress.
	Progress = core.Progress

	// Kind identifies a job type.
	Kind = core.Kind

	// Args is the sealed set of job argument types.
	Args = core.Args

	FetchMarketDataArgs      = core.FetchMarketDataArgs
	FetchAssetInfoArgs       = core.FetchAssetInfoArgs
	UpdatePricesArgs         = core.UpdatePricesArgs
	CalculatePerformanceArgs = core.CalculatePerformanceArgs
	CreateSnapshotArgs       = core.CreateSnapshotArgs

	// Broker carries job invocations to workers.
	Broker = core.Broker

	// ResultStore holds job status records.
	ResultStore = core.ResultStore

	// WorkerRegistry tracks live workers.
	WorkerRegistry = core.WorkerRegistry

	// Event is the interface for all job events.
	Event = core.Event

	JobSubmitted  = core.JobSubmitted
	JobStarted    = core.JobStarted
	JobProgressed = core.JobProgressed
	JobSucceeded  = core.JobSucceeded
	JobFailed     = core.JobFailed
	JobRevoked    = core.JobRevoked

	// UnknownJobError is returned for a job name that is not a Kind.
	UnknownJobError = core.UnknownJobError

	// TransportError wraps a broker or result store failure.
	TransportError = core.TransportError

	// Manager is the job facade: submit, status, cancel and inspection.
	Manager = manager.Manager

	// Option modifies a submission.
	Option = manager.Option

	// ManagerOption configures a Manager.
	ManagerOption = manager.ManagerOption

	StatusReport  = manager.StatusReport
	ActiveReport  = manager.ActiveReport
	ActiveJob     = manager.ActiveJob
	WorkerStats   = manager.WorkerStats
	WorkerSummary = manager.WorkerSummary
	PurgeReport   = manager.PurgeReport

	// Registry maps every Kind to its handler.
	Registry = registry.Registry

	// Handler runs one kind of job.
	Handler = registry.Handler

	// Worker claims and executes jobs.
	Worker = worker.Worker

	// WorkerOption configures a Worker.
	WorkerOption = worker.WorkerOption

	// WorkerConfig holds worker configuration.
	WorkerConfig = worker.WorkerConfig

	// Reaper fails jobs whose worker stopped heartbeating.
	Reaper = worker.Reaper

	// Schedule defines when an entry fires next.
	Schedule = schedule.Schedule

	// Scheduler submits schedule entries when they come due.
	Scheduler = schedule.Scheduler

	// ScheduleEntry is one row of a schedule table.
	ScheduleEntry = schedule.Entry

	// GormStorage is the broker, result store and worker registry on GORM.
	GormStorage = storage.GormStorage
)

// Broker statuses
const (
	StatusQueued  = core.StatusQueued
	StatusClaimed = core.StatusClaimed
	StatusAcked   = core.StatusAcked
	StatusRevoked = core.StatusRevoked
)

// Job states
const (
	StatePending  = core.StatePending
	StateProgress = core.StateProgress
	StateSuccess  = core.StateSuccess
	StateFailure  = core.StateFailure
	StateRevoked  = core.StateRevoked
)

// Job kinds
const (
	KindFetchMarketData      = core.KindFetchMarketData
	KindFetchAssetInfo       = core.KindFetchAssetInfo
	KindUpdatePrices         = core.KindUpdatePrices
	KindCalculatePerformance = core.KindCalculatePerformance
	KindCreateSnapshot       = core.KindCreateSnapshot
)

// Security limits
const (
	MaxJobNameLength      = security.MaxJobNameLength
	MaxJobArgsSize        = security.MaxJobArgsSize
	MaxConcurrency        = security.MaxConcurrency
	MaxErrorMessageLength = security.MaxErrorMessageLength
	MaxQueueNameLength    = security.MaxQueueNameLength
	MaxUniqueKeyLength    = security.MaxUniqueKeyLength
)

// Error variables
var (
	ErrInvalidJobName   = core.ErrInvalidJobName
	ErrJobNameTooLong   = core.ErrJobNameTooLong
	ErrInvalidQueueName = core.ErrInvalidQueueName
	ErrQueueNameTooLong = core.ErrQueueNameTooLong
	ErrJobArgsTooLarge  = core.ErrJobArgsTooLarge
	ErrJobNotOwned      = core.ErrJobNotOwned
	ErrDuplicateJob     = core.ErrDuplicateJob
	ErrStateRegression  = core.ErrStateRegression
	ErrMissingHandler   = core.ErrMissingHandler
	ErrRevoked          = core.ErrRevoked
	ErrHardTimeLimit    = core.ErrHardTimeLimit
)

// NewGormStorage creates the GORM-backed broker and result store.
func NewGormStorage(db *gorm.DB, opts ...storage.Option) *GormStorage {
	return storage.NewGormStorage(db, opts...)
}

// NewRegistry builds a registry. It fails unless every Kind has exactly
// one handler.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	return registry.New(handlers...)
}

// Handle adapts a typed function into a Handler for the kind of A.
func Handle[A Args, R any](fn func(ctx context.Context, args A) (R, error)) Handler {
	return registry.Handle(fn)
}

// NewManager creates the job facade.
func NewManager(broker Broker, results ResultStore, reg *Registry, opts ...ManagerOption) *Manager {
	return manager.New(broker, results, reg, opts...)
}

// NewWorker creates a worker for the manager's broker.
func NewWorker(m *Manager, opts ...WorkerOption) *Worker {
	return worker.NewWorker(m, opts...)
}

// NewReaper creates a reaper that runs every interval.
func NewReaper(m *Manager, interval time.Duration) *Reaper {
	return worker.NewReaper(m, interval)
}

// NewScheduler creates a scheduler over a fixed table.
func NewScheduler(m *Manager, entries []ScheduleEntry, opts ...schedule.Option) (*Scheduler, error) {
	return schedule.New(m, entries, opts...)
}

// ParseKind resolves a job name.
func ParseKind(name string) (Kind, error) {
	return core.ParseKind(name)
}

// Submission options

// QueueOpt sets the queue name.
func QueueOpt(name string) Option {
	return manager.QueueOpt(name)
}

// Unique skips the submission while a job with the same key is in flight.
func Unique(key string) Option {
	return manager.Unique(key)
}

// Worker options

// Concurrency sets the concurrency for every configured queue.
func Concurrency(n int) WorkerOption {
	return worker.Concurrency(n)
}

// WorkerQueue adds a queue to process with optional concurrency.
func WorkerQueue(name string, opts ...WorkerOption) WorkerOption {
	return worker.WorkerQueue(name, opts...)
}

// WithTimeLimits sets the soft and hard time limits.
func WithTimeLimits(soft, hard time.Duration) WorkerOption {
	return worker.WithTimeLimits(soft, hard)
}

// Schedules

// Every creates a schedule that runs at fixed intervals.
func Every(d time.Duration) Schedule {
	return schedule.Every(d)
}

// Daily creates a schedule that runs at a specific time each day.
func Daily(hour, minute int) Schedule {
	return schedule.Daily(hour, minute)
}

// Weekly creates a schedule that runs at a specific day and time each week.
func Weekly(day time.Weekday, hour, minute int) Schedule {
	return schedule.Weekly(day, hour, minute)
}

// Cron creates a schedule from a five-field cron expression. It panics on
// an invalid expression; use ParseCron for input that is not a constant.
func Cron(expr string) Schedule {
	return schedule.Cron(expr)
}

// ParseCron parses a five-field cron expression.
func ParseCron(expr string) (Schedule, error) {
	return schedule.ParseCron(expr)
}

// Handler context

// JobFromContext returns the current Job, or nil outside a job handler.
func JobFromContext(ctx context.Context) *Job {
	return jobctx.JobFromContext(ctx)
}

// JobIDFromContext returns the current job ID, or "" outside a job handler.
func JobIDFromContext(ctx context.Context) string {
	return jobctx.JobIDFromContext(ctx)
}

// ReportProgress publishes the handler's progress.
func ReportProgress(ctx context.Context, current, total int, status string) {
	jobctx.ReportProgress(ctx, current, total, status)
}

// Stopped returns the reason the handler must stop, or nil to carry on.
func Stopped(ctx context.Context) error {
	return jobctx.Stopped(ctx)
}
