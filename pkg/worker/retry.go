package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// RetryConfig bounds the backoff used for the worker's own writes to the
// broker and result store. Jobs and batch items are never retried.
type RetryConfig struct {
	MaxAttempts       int // including the first
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	// JitterFraction randomizes each wait by up to this fraction (0.0 to 1.0).
	JitterFraction float64
}

// DefaultRetryConfig returns the backoff used for status and ack writes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.1,
	}
}

// dequeueRetryConfig backs off longer so an outage is not hammered.
func dequeueRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFraction:    0.2,
	}
}

// delay is the wait after the given failed attempt (1-based), before jitter.
func (c RetryConfig) delay(attempt int) time.Duration {
	d := float64(c.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= c.BackoffMultiplier
		if d >= float64(c.MaxBackoff) {
			return c.MaxBackoff
		}
	}
	return time.Duration(d)
}

func (c RetryConfig) jittered(d time.Duration) time.Duration {
	if c.JitterFraction <= 0 {
		return d
	}
	j := time.Duration(float64(d) * c.JitterFraction * (rand.Float64()*2 - 1))
	if d+j < 0 {
		return d
	}
	return d + j
}

// retryWithBackoff runs op until it succeeds, fails permanently, or runs
// out of attempts. It returns the last error.
func retryWithBackoff(ctx context.Context, cfg RetryConfig, op func() error) error {
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !IsRetryableError(err) || attempt >= cfg.MaxAttempts {
			return err
		}

		timer := time.NewTimer(cfg.jittered(cfg.delay(attempt)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// permanentErrors never succeed on retry.
var permanentErrors = []error{
	context.Canceled,
	context.DeadlineExceeded,
	core.ErrStateRegression,
	core.ErrConflictingResult,
	core.ErrJobNotOwned,
}

// IsRetryableError reports whether a storage error may succeed on retry.
// Anything not known to be permanent is treated as a transient connection
// or lock problem.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	for _, p := range permanentErrors {
		if errors.Is(err, p) {
			return false
		}
	}
	return true
}
