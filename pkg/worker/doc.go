// Package worker runs jobs pulled from the broker.
//
// A Worker claims up to its concurrency in jobs, writes PROGRESS when it
// starts each one, and records exactly one terminal state when the
// handler returns: SUCCESS, FAILURE, or REVOKED when a revoke request
// cancelled the handler. Progress reports are persisted by a background
// flusher, so a handler never blocks on the result store.
//
// The Reaper fails jobs whose worker died mid-run and the Purger applies
// result retention. Neither requeues anything.
package worker
