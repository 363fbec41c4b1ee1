package manager

import (
	"context"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// OnJobStart registers a callback for when a worker starts a job.
func (m *Manager) OnJobStart(fn func(context.Context, *core.Job)) {
	m.mu.Lock()
	m.onStart = append(m.onStart, fn)
	m.mu.Unlock()
}

// OnJobComplete registers a callback for when a job succeeds.
func (m *Manager) OnJobComplete(fn func(context.Context, *core.Job)) {
	m.mu.Lock()
	m.onComplete = append(m.onComplete, fn)
	m.mu.Unlock()
}

// OnJobFail registers a callback for when a job fails.
func (m *Manager) OnJobFail(fn func(context.Context, *core.Job, error)) {
	m.mu.Lock()
	m.onFail = append(m.onFail, fn)
	m.mu.Unlock()
}

// OnJobRevoke registers a callback for when a job ends revoked.
func (m *Manager) OnJobRevoke(fn func(context.Context, string)) {
	m.mu.Lock()
	m.onRevoke = append(m.onRevoke, fn)
	m.mu.Unlock()
}

// Events returns a channel for receiving job events emitted in this process.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (m *Manager) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	m.mu.Lock()
	m.eventSubs = append(m.eventSubs, ch)
	m.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed.
func (m *Manager) Unsubscribe(ch <-chan core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.eventSubs {
		if sub == ch {
			m.eventSubs = append(m.eventSubs[:i], m.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit emits an event to all subscribers. Slow subscribers miss events.
func (m *Manager) Emit(e core.Event) {
	m.mu.RLock()
	subs := make([]chan core.Event, len(m.eventSubs))
	copy(subs, m.eventSubs)
	m.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// CallStartHooks calls all registered start hooks.
func (m *Manager) CallStartHooks(ctx context.Context, job *core.Job) {
	m.mu.RLock()
	hooks := make([]func(context.Context, *core.Job), len(m.onStart))
	copy(hooks, m.onStart)
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

// CallCompleteHooks calls all registered complete hooks.
func (m *Manager) CallCompleteHooks(ctx context.Context, job *core.Job) {
	m.mu.RLock()
	hooks := make([]func(context.Context, *core.Job), len(m.onComplete))
	copy(hooks, m.onComplete)
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job)
	}
}

// CallFailHooks calls all registered fail hooks.
func (m *Manager) CallFailHooks(ctx context.Context, job *core.Job, err error) {
	m.mu.RLock()
	hooks := make([]func(context.Context, *core.Job, error), len(m.onFail))
	copy(hooks, m.onFail)
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, job, err)
	}
}

// CallRevokeHooks calls all registered revoke hooks.
func (m *Manager) CallRevokeHooks(ctx context.Context, jobID string) {
	m.mu.RLock()
	hooks := make([]func(context.Context, string), len(m.onRevoke))
	copy(hooks, m.onRevoke)
	m.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, jobID)
	}
}
