package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func TestRetryConfig_Delay(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, BackoffMultiplier: 3}

	assert.Equal(t, 100*time.Millisecond, cfg.delay(1))
	assert.Equal(t, 300*time.Millisecond, cfg.delay(2))
	assert.Equal(t, 900*time.Millisecond, cfg.delay(3))
	assert.Equal(t, time.Second, cfg.delay(4), "capped")
	assert.Equal(t, time.Second, cfg.delay(20))
}

func TestRetryConfig_JitterStaysInBounds(t *testing.T) {
	cfg := RetryConfig{JitterFraction: 0.2}
	for range 100 {
		d := cfg.jittered(time.Second)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
	assert.Equal(t, time.Second, RetryConfig{}.jittered(time.Second))
}

func TestRetryWithBackoff(t *testing.T) {
	transient := errors.New("connection reset")

	tests := []struct {
		name         string
		attempts     int
		failures     []error
		wantErr      error
		wantAttempts int
	}{
		{name: "first try", attempts: 5, wantAttempts: 1},
		{name: "recovers", attempts: 5, failures: []error{transient, transient}, wantAttempts: 3},
		{name: "exhausted", attempts: 3, failures: []error{transient, transient, transient, transient}, wantErr: transient, wantAttempts: 3},
		{name: "regression is permanent", attempts: 5, failures: []error{fmt.Errorf("save: %w", core.ErrStateRegression)}, wantErr: core.ErrStateRegression, wantAttempts: 1},
		{name: "cancelled op is permanent", attempts: 5, failures: []error{context.Canceled}, wantErr: context.Canceled, wantAttempts: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), fastRetry(tt.attempts), func() error {
				calls++
				if calls <= len(tt.failures) {
					return tt.failures[calls-1]
				}
				return nil
			})

			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.wantAttempts, calls)
		})
	}
}

func TestRetryWithBackoff_StopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 10, InitialBackoff: time.Hour, MaxBackoff: time.Hour, BackoffMultiplier: 1}

	calls := 0
	err := retryWithBackoff(ctx, cfg, func() error {
		calls++
		cancel()
		return errors.New("down")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.DeadlineExceeded))
	assert.False(t, IsRetryableError(core.ErrConflictingResult))
	assert.False(t, IsRetryableError(fmt.Errorf("ack: %w", core.ErrJobNotOwned)))
	assert.True(t, IsRetryableError(errors.New("database is locked")))
}

func TestWithStorageRetry(t *testing.T) {
	var cfg WorkerConfig
	WithStorageRetry(fastRetry(7)).ApplyWorker(&cfg)

	require.NotNil(t, cfg.StorageRetry)
	assert.Equal(t, 7, cfg.StorageRetry.MaxAttempts)
	assert.Greater(t, dequeueRetryConfig().InitialBackoff, DefaultRetryConfig().InitialBackoff)
}
