package manager

import (
	"log/slog"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// DefaultPollInterval is how often Wait polls the result store.
const DefaultPollInterval = 5 * time.Second

// DefaultWorkerStaleAfter is how long a worker may go without a heartbeat
// before it is left out of WorkerStats.
const DefaultWorkerStaleAfter = time.Minute

// Options holds per-submission settings.
type Options struct {
	Queue     string
	UniqueKey string
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{Queue: "default"}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// QueueOpt sets the queue name.
func QueueOpt(name string) Option {
	return optionFunc(func(o *Options) {
		o.Queue = name
	})
}

// Unique skips the submission with core.ErrDuplicateJob when a job with the
// same key is still queued or running.
func Unique(key string) Option {
	return optionFunc(func(o *Options) {
		o.UniqueKey = key
	})
}

// ManagerOption configures a Manager.
type ManagerOption interface {
	applyManager(*Manager)
}

type managerOptionFunc func(*Manager)

func (f managerOptionFunc) applyManager(m *Manager) { f(m) }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return managerOptionFunc(func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	})
}

// WithWorkerRegistry enables WorkerStats.
func WithWorkerRegistry(r core.WorkerRegistry) ManagerOption {
	return managerOptionFunc(func(m *Manager) {
		m.workers = r
	})
}

// WithWorkerStaleAfter sets the heartbeat window for WorkerStats.
func WithWorkerStaleAfter(d time.Duration) ManagerOption {
	return managerOptionFunc(func(m *Manager) {
		if d > 0 {
			m.staleAfter = d
		}
	})
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return managerOptionFunc(func(m *Manager) {
		m.now = now
	})
}
