package core

import (
	"context"
	"time"
)

// Starter is the interface for starting long-running components.
type Starter interface {
	Start(ctx context.Context) error
}

// Broker carries job invocations from submitters to workers.
type Broker interface {
	// Migrate creates the necessary database tables.
	Migrate(ctx context.Context) error

	// Delivery
	Enqueue(ctx context.Context, job *Job) error
	EnqueueUnique(ctx context.Context, job *Job, uniqueKey string) error
	Dequeue(ctx context.Context, queues []string, workerID string, lockFor time.Duration) (*Job, error)
	Ack(ctx context.Context, jobID string, workerID string) error

	// Revocation. Revoke returns the status the job had when the signal
	// was recorded; a queued job moves straight to StatusRevoked.
	Revoke(ctx context.Context, jobID string) (JobStatus, error)
	RevokeRequested(ctx context.Context, jobID string) (bool, error)

	// Locking
	Heartbeat(ctx context.Context, jobID string, workerID string, lockFor time.Duration) error
	ExpiredClaims(ctx context.Context, now time.Time) ([]*Job, error)
	ReleaseClaim(ctx context.Context, jobID string) error

	// Queries
	GetJob(ctx context.Context, jobID string) (*Job, error)
	GetJobsByStatus(ctx context.Context, status JobStatus, limit int) ([]*Job, error)
	PurgeFinished(ctx context.Context, before time.Time) (int64, error)
}

// ResultStore holds the externally visible status record of each job.
// Implementations must reject writes that move a record backwards or
// overwrite a terminal record (ErrStateRegression).
type ResultStore interface {
	SaveStatus(ctx context.Context, rec *StatusRecord) error
	GetStatus(ctx context.Context, jobID string) (*StatusRecord, error)
}

// WorkerRegistry tracks worker heartbeats for pool inspection.
type WorkerRegistry interface {
	UpsertWorker(ctx context.Context, info *WorkerInfo) error
	RemoveWorker(ctx context.Context, workerID string) error
	ListWorkers(ctx context.Context, seenSince time.Time) ([]*WorkerInfo, error)
}
