// Package worker provides the Worker job processor for the jobs package.
package worker

import (
	"log/slog"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/security"
)

// Defaults for WorkerConfig.
const (
	DefaultPollInterval        = time.Second
	DefaultSoftTimeLimit       = 25 * time.Minute
	DefaultHardTimeLimit       = 30 * time.Minute
	DefaultLockDuration        = 2 * time.Minute
	DefaultHeartbeatInterval   = 30 * time.Second
	DefaultRevokeCheckInterval = time.Second
	DefaultRegistryInterval    = 15 * time.Second
	DefaultAbandonGrace        = 10 * time.Second
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	Queues       map[string]int // queue name -> concurrency
	PollInterval time.Duration
	WorkerID     string

	// SoftTimeLimit is exposed to handlers through jobctx.SoftDeadline.
	// HardTimeLimit cancels the handler and fails the job.
	SoftTimeLimit time.Duration
	HardTimeLimit time.Duration

	// LockDuration is how long a claim survives without a heartbeat.
	LockDuration      time.Duration
	HeartbeatInterval time.Duration

	RevokeCheckInterval time.Duration
	RegistryInterval    time.Duration

	// AbandonGrace is how long a cancelled handler gets to return before
	// the worker records the outcome without it.
	AbandonGrace time.Duration

	StorageRetry *RetryConfig
	DequeueRetry *RetryConfig

	Logger *slog.Logger
}

// Concurrency sets the concurrency for every configured queue.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		clamped := security.ClampConcurrency(n)
		if c.Queues == nil {
			c.Queues = map[string]int{"default": clamped}
			return
		}
		for k := range c.Queues {
			c.Queues[k] = clamped
		}
	})
}

// WorkerQueue adds a queue to process with optional concurrency.
func WorkerQueue(name string, opts ...WorkerOption) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if c.Queues == nil {
			c.Queues = make(map[string]int)
		}
		c.Queues[name] = 4
		for _, opt := range opts {
			opt.ApplyWorker(c)
		}
	})
}

// WithWorkerID overrides the generated worker ID.
func WithWorkerID(id string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.WorkerID = id
	})
}

// WithPollInterval sets how often the broker is polled when idle.
func WithPollInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.PollInterval = d
		}
	})
}

// WithTimeLimits sets the soft and hard time limits. See security.ClampTimeLimits.
func WithTimeLimits(soft, hard time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.SoftTimeLimit, c.HardTimeLimit = security.ClampTimeLimits(soft, hard)
	})
}

// WithLocking sets the claim lock duration and the heartbeat that renews it.
func WithLocking(lockFor, heartbeat time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if lockFor > 0 {
			c.LockDuration = lockFor
		}
		if heartbeat > 0 {
			c.HeartbeatInterval = heartbeat
		}
	})
}

// WithRevokeCheckInterval sets how often a running job's revoke flag is read.
func WithRevokeCheckInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.RevokeCheckInterval = d
		}
	})
}

// WithRegistryInterval sets how often the worker publishes its stats.
func WithRegistryInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d > 0 {
			c.RegistryInterval = d
		}
	})
}

// WithAbandonGrace sets how long a cancelled handler may take to return.
func WithAbandonGrace(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		if d >= 0 {
			c.AbandonGrace = d
		}
	})
}

// WithStorageRetry sets the backoff used for status and ack writes.
func WithStorageRetry(cfg RetryConfig) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.StorageRetry = &cfg
	})
}

// WithLogger sets the worker's logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Logger = l
	})
}
