package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
	"github.com/jdziat/portfolio-jobs/pkg/security"
)

// Entry is one row of the schedule table. Every firing submits a new job
// with Args.
type Entry struct {
	Name     string
	Schedule Schedule
	Args     core.Args

	// SkipIfActive drops a firing while an equivalent job (same kind and
	// args) is still queued or running.
	SkipIfActive bool
}

// Submitter is the part of the manager the scheduler needs.
type Submitter interface {
	Submit(ctx context.Context, args core.Args, opts ...manager.Option) (string, error)
}

// Firing describes what happened to one due entry during a tick.
type Firing struct {
	Entry   string
	JobID   string
	Skipped bool
	Err     error
}

// Scheduler submits entries when their schedule comes due. Evaluation has
// minute resolution: an entry fires at most once per minute, and a missed
// minute fires once late instead of being replayed.
type Scheduler struct {
	submitter Submitter
	entries   []Entry
	loc       *time.Location
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone entries are evaluated in. Defaults to UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTickInterval overrides the one-minute evaluation tick.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock overrides the time source used by Run.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a scheduler over a fixed table. Entry names must be valid
// and unique, and every entry needs a schedule and args.
func New(sub Submitter, entries []Entry, opts ...Option) (*Scheduler, error) {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if err := security.ValidateJobName(e.Name); err != nil {
			return nil, fmt.Errorf("schedule: entry %q: %w", e.Name, err)
		}
		if seen[e.Name] {
			return nil, fmt.Errorf("schedule: duplicate entry %q", e.Name)
		}
		seen[e.Name] = true
		if e.Schedule == nil || e.Args == nil {
			return nil, fmt.Errorf("schedule: entry %q needs a schedule and args", e.Name)
		}
	}

	s := &Scheduler{
		submitter: sub,
		entries:   append([]Entry(nil), entries...),
		loc:       time.UTC,
		interval:  time.Minute,
		logger:    slog.Default(),
		now:       time.Now,
		last:      make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Entries returns the schedule table.
func (s *Scheduler) Entries() []Entry {
	return append([]Entry(nil), s.entries...)
}

// Tick submits every entry due at now and reports what it did.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Firing {
	minute := now.In(s.loc).Truncate(time.Minute)

	s.mu.Lock()
	defer s.mu.Unlock()

	var fired []Firing
	for _, e := range s.entries {
		from, ok := s.last[e.Name]
		if !ok {
			from = minute.Add(-time.Nanosecond)
			s.last[e.Name] = from
		}
		if e.Schedule.Next(from).After(minute) {
			continue
		}
		s.last[e.Name] = minute
		fired = append(fired, s.fire(ctx, e))
	}
	return fired
}

func (s *Scheduler) fire(ctx context.Context, e Entry) Firing {
	f := Firing{Entry: e.Name}
	log := s.logger.With("entry", e.Name, "kind", e.Args.Kind())

	var opts []manager.Option
	if e.SkipIfActive {
		key, err := dedupeKey(e.Args)
		if err != nil {
			f.Err = err
			log.Error("failed to build dedupe key", "error", err)
			return f
		}
		opts = append(opts, manager.Unique(key))
	}

	id, err := s.submitter.Submit(ctx, e.Args, opts...)
	switch {
	case errors.Is(err, core.ErrDuplicateJob):
		f.Skipped = true
		log.Info("scheduled job skipped, equivalent job in flight")
	case err != nil:
		f.Err = err
		log.Error("failed to submit scheduled job", "error", err)
	default:
		f.JobID = id
		log.Info("scheduled job submitted", "job_id", id)
	}
	return f
}

// dedupeKey identifies equivalent jobs, so overlapping entries that submit
// the same work share a key.
func dedupeKey(args core.Args) (string, error) {
	b, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("schedule:%s:%s", args.Kind(), b), nil
}

// Run ticks on every interval boundary until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", "entries", len(s.entries), "location", s.loc.String())
	s.Tick(ctx, s.now())

	for {
		now := s.now()
		wait := now.Truncate(s.interval).Add(s.interval).Sub(now)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
			s.Tick(ctx, s.now())
		}
	}
}
