package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
	"github.com/jdziat/portfolio-jobs/pkg/registry"
	"github.com/jdziat/portfolio-jobs/pkg/storage"
)

// testRegistry fills every kind not covered by hs with a no-op handler.
func testRegistry(t *testing.T, hs ...registry.Handler) *registry.Registry {
	t.Helper()
	covered := make(map[core.Kind]bool)
	for _, h := range hs {
		covered[h.Kind()] = true
	}
	noops := []registry.Handler{
		registry.Handle(func(ctx context.Context, a core.FetchMarketDataArgs) (string, error) { return "ok", nil }),
		registry.Handle(func(ctx context.Context, a core.FetchAssetInfoArgs) (string, error) { return "ok", nil }),
		registry.Handle(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) { return "ok", nil }),
		registry.Handle(func(ctx context.Context, a core.CalculatePerformanceArgs) (string, error) { return "ok", nil }),
		registry.Handle(func(ctx context.Context, a core.CreateSnapshotArgs) (string, error) { return "ok", nil }),
	}
	for _, h := range noops {
		if !covered[h.Kind()] {
			hs = append(hs, h)
		}
	}
	r, err := registry.New(hs...)
	require.NoError(t, err)
	return r
}

func newTestManager(t *testing.T, hs ...registry.Handler) (*manager.Manager, *storage.GormStorage) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	_, err = storage.ConfigurePool(db, storage.WithPoolConfig(storage.SQLitePoolConfig()))
	require.NoError(t, err)

	s := storage.NewGormStorage(db)
	require.NoError(t, s.Migrate(context.Background()))
	return manager.New(s, s, testRegistry(t, hs...), manager.WithWorkerRegistry(s)), s
}

// fastTimings keeps worker loops quick enough for tests.
func fastTimings() WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.PollInterval = 10 * time.Millisecond
		c.RevokeCheckInterval = 10 * time.Millisecond
		c.HeartbeatInterval = 20 * time.Millisecond
		c.RegistryInterval = 20 * time.Millisecond
		c.AbandonGrace = 200 * time.Millisecond
		c.StorageRetry = &RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond, BackoffMultiplier: 2}
	})
}

// startWorker runs w in the background and stops it on test cleanup.
func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForState(t *testing.T, m *manager.Manager, id string, want core.State) manager.StatusReport {
	t.Helper()
	var last manager.StatusReport
	require.Eventually(t, func() bool {
		last = m.Status(context.Background(), id)
		return last.State == want
	}, 5*time.Second, 10*time.Millisecond, "job %s never reached %s (last %+v)", id, want, last)
	return last
}

// ──────────────────────────────────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────────────────────────────────

func TestNewWorker_Defaults(t *testing.T) {
	m, _ := newTestManager(t)
	w := NewWorker(m)

	cfg := w.Config()
	assert.Equal(t, map[string]int{"default": 4}, cfg.Queues)
	assert.Equal(t, DefaultSoftTimeLimit, cfg.SoftTimeLimit)
	assert.Equal(t, DefaultHardTimeLimit, cfg.HardTimeLimit)
	assert.NotEmpty(t, w.ID())
	require.NotNil(t, cfg.StorageRetry)
	require.NotNil(t, cfg.DequeueRetry)
}

func TestConcurrency_AppliesToAllQueues(t *testing.T) {
	config := WorkerConfig{Queues: map[string]int{"default": 1, "market": 1}}

	Concurrency(5).ApplyWorker(&config)
	assert.Equal(t, 5, config.Queues["default"])
	assert.Equal(t, 5, config.Queues["market"])

	Concurrency(5000).ApplyWorker(&config)
	assert.Equal(t, 1000, config.Queues["default"])

	Concurrency(0).ApplyWorker(&config)
	assert.Equal(t, 1, config.Queues["default"])
}

func TestWorkerQueue(t *testing.T) {
	config := WorkerConfig{}
	WorkerQueue("market", Concurrency(2)).ApplyWorker(&config)
	WorkerQueue("default").ApplyWorker(&config)

	assert.Equal(t, 2, config.Queues["market"])
	assert.Equal(t, 4, config.Queues["default"])
}

func TestWithTimeLimits_Clamps(t *testing.T) {
	config := WorkerConfig{}
	WithTimeLimits(time.Hour, 30*time.Minute).ApplyWorker(&config)

	assert.Equal(t, 30*time.Minute, config.HardTimeLimit)
	assert.Equal(t, 30*time.Minute, config.SoftTimeLimit, "soft limit cannot exceed hard limit")
}

// ──────────────────────────────────────────────────────────────────────────────
// Execution outcomes
// ──────────────────────────────────────────────────────────────────────────────

type snapshotResult struct {
	SnapshotsCreated int `json:"snapshots_created"`
}

func TestWorker_Success(t *testing.T) {
	m, s := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.CreateSnapshotArgs) (snapshotResult, error) {
			return snapshotResult{SnapshotsCreated: 3}, nil
		}),
	)

	var completed []string
	var mu sync.Mutex
	m.OnJobComplete(func(_ context.Context, j *core.Job) {
		mu.Lock()
		completed = append(completed, j.ID)
		mu.Unlock()
	})

	id, err := m.Submit(context.Background(), core.CreateSnapshotArgs{})
	require.NoError(t, err)

	w := NewWorker(m, fastTimings(), WithWorkerID("w1"))
	startWorker(t, w)

	r := waitForState(t, m, id, core.StateSuccess)
	assert.JSONEq(t, `{"snapshots_created":3}`, string(r.Result))
	assert.Empty(t, r.Error)
	assert.Equal(t, "w1", r.WorkerID)

	require.Eventually(t, func() bool {
		job, _ := s.GetJob(context.Background(), id)
		return job != nil && job.Status == core.StatusAcked
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []string{id}, completed)
	mu.Unlock()
}

func TestWorker_HandlerError(t *testing.T) {
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) {
			return "", errors.New("cannot open session")
		}),
	)

	id, err := m.Submit(context.Background(), core.UpdatePricesArgs{})
	require.NoError(t, err)
	startWorker(t, NewWorker(m, fastTimings()))

	r := waitForState(t, m, id, core.StateFailure)
	assert.Equal(t, "cannot open session", r.Error)
	assert.Nil(t, r.Result)
}

func TestWorker_Panic(t *testing.T) {
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) {
			panic("nil map")
		}),
	)

	id, err := m.Submit(context.Background(), core.UpdatePricesArgs{})
	require.NoError(t, err)
	startWorker(t, NewWorker(m, fastTimings()))

	r := waitForState(t, m, id, core.StateFailure)
	assert.Contains(t, r.Error, "panic: nil map")
}

func TestWorker_ProgressVisibleWhileRunning(t *testing.T) {
	release := make(chan struct{})
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.FetchMarketDataArgs) (string, error) {
			for i, sym := range a.Symbols {
				jobctx.ReportProgress(ctx, i+1, len(a.Symbols), sym)
			}
			<-release
			return "done", nil
		}),
	)

	id, err := m.Submit(context.Background(), core.FetchMarketDataArgs{Symbols: []string{"AAPL", "MSFT"}})
	require.NoError(t, err)
	startWorker(t, NewWorker(m, fastTimings()))

	require.Eventually(t, func() bool {
		r := m.Status(context.Background(), id)
		return r.State == core.StateProgress && r.Progress != nil && r.Progress.Current == 2
	}, 5*time.Second, 10*time.Millisecond)

	r := m.Status(context.Background(), id)
	assert.Equal(t, core.Progress{Current: 2, Total: 2, Status: "MSFT"}, *r.Progress)

	close(release)
	waitForState(t, m, id, core.StateSuccess)
}

func TestWorker_RevokeRunningJob(t *testing.T) {
	var committed atomic.Bool
	started := make(chan struct{})
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) {
			close(started)
			<-ctx.Done()
			if err := jobctx.Stopped(ctx); err != nil {
				return "", err
			}
			committed.Store(true)
			return "committed", nil
		}),
	)

	var revoked []string
	var mu sync.Mutex
	m.OnJobRevoke(func(_ context.Context, id string) {
		mu.Lock()
		revoked = append(revoked, id)
		mu.Unlock()
	})

	id, err := m.Submit(context.Background(), core.UpdatePricesArgs{})
	require.NoError(t, err)
	startWorker(t, NewWorker(m, fastTimings()))

	<-started
	waitForState(t, m, id, core.StateProgress)
	require.True(t, m.Cancel(context.Background(), id))

	r := waitForState(t, m, id, core.StateRevoked)
	assert.Empty(t, r.Error, "only failures carry an error")
	rec, err := m.Results().GetStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, rec.Error)
	assert.False(t, committed.Load())

	mu.Lock()
	assert.Equal(t, []string{id}, revoked)
	mu.Unlock()
}

func TestWorker_HardTimeLimit(t *testing.T) {
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.CalculatePerformanceArgs) (string, error) {
			<-ctx.Done()
			return "", context.Cause(ctx)
		}),
	)

	id, err := m.Submit(context.Background(), core.CalculatePerformanceArgs{UserID: 1})
	require.NoError(t, err)

	limits := workerOptionFunc(func(c *WorkerConfig) {
		c.SoftTimeLimit = 20 * time.Millisecond
		c.HardTimeLimit = 50 * time.Millisecond
	})
	startWorker(t, NewWorker(m, fastTimings(), limits))

	r := waitForState(t, m, id, core.StateFailure)
	assert.Contains(t, r.Error, "hard time limit")
}

func TestWorker_AbandonsHandlerIgnoringCancellation(t *testing.T) {
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })

	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.CalculatePerformanceArgs) (string, error) {
			<-stuck
			return "late", nil
		}),
	)

	id, err := m.Submit(context.Background(), core.CalculatePerformanceArgs{UserID: 1})
	require.NoError(t, err)

	limits := workerOptionFunc(func(c *WorkerConfig) {
		c.SoftTimeLimit = 20 * time.Millisecond
		c.HardTimeLimit = 50 * time.Millisecond
		c.AbandonGrace = 20 * time.Millisecond
	})
	startWorker(t, NewWorker(m, fastTimings(), limits))

	r := waitForState(t, m, id, core.StateFailure)
	assert.Contains(t, r.Error, "hard time limit")
}

func TestWorker_SoftDeadlineExposed(t *testing.T) {
	got := make(chan time.Time, 1)
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.FetchAssetInfoArgs) (string, error) {
			d, _ := jobctx.SoftDeadline(ctx)
			got <- d
			return a.Ticker, nil
		}),
	)

	_, err := m.Submit(context.Background(), core.FetchAssetInfoArgs{Ticker: "AAPL"})
	require.NoError(t, err)
	before := time.Now()
	startWorker(t, NewWorker(m, fastTimings(), WithTimeLimits(2*time.Minute, 5*time.Minute)))

	select {
	case d := <-got:
		assert.WithinDuration(t, before.Add(2*time.Minute), d, 5*time.Second)
	case <-time.After(5 * time.Second):
		t.Fatal("handler never ran")
	}
}

func TestWorker_RespectsConcurrency(t *testing.T) {
	release := make(chan struct{})
	var mu sync.Mutex
	running, peak := 0, 0
	m, s := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			<-release
			mu.Lock()
			running--
			mu.Unlock()
			return "ok", nil
		}),
	)

	var ids []string
	for range 3 {
		id, err := m.Submit(context.Background(), core.UpdatePricesArgs{})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	startWorker(t, NewWorker(m, fastTimings(), Concurrency(1)))

	waitForState(t, m, ids[0], core.StateProgress)
	time.Sleep(50 * time.Millisecond)

	queued, err := s.GetJobsByStatus(context.Background(), core.StatusQueued, 10)
	require.NoError(t, err)
	assert.Len(t, queued, 2, "a busy worker must not claim jobs it cannot start")

	close(release)
	for _, id := range ids {
		waitForState(t, m, id, core.StateSuccess)
	}
	mu.Lock()
	assert.Equal(t, 1, peak)
	mu.Unlock()
}

func TestWorker_StatesNeverRegress(t *testing.T) {
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.FetchMarketDataArgs) (json.RawMessage, error) {
			for i := range 20 {
				jobctx.ReportProgress(ctx, i+1, 20, "")
				time.Sleep(time.Millisecond)
			}
			return json.RawMessage(`{"total_processed":20}`), nil
		}),
	)

	id, err := m.Submit(context.Background(), core.FetchMarketDataArgs{})
	require.NoError(t, err)
	startWorker(t, NewWorker(m, fastTimings()))

	var seen []manager.StatusReport
	r, ok := m.Watch(context.Background(), id, 2*time.Millisecond, 5*time.Second, func(r manager.StatusReport) {
		seen = append(seen, r)
	})
	require.True(t, ok)
	assert.Equal(t, core.StateSuccess, r.State)

	for i := 1; i < len(seen); i++ {
		assert.LessOrEqual(t, seen[i-1].State.Rank(), seen[i].State.Rank())
	}

	again := m.Status(context.Background(), id)
	assert.Equal(t, r, again, "terminal record must be stable")
}

// ──────────────────────────────────────────────────────────────────────────────
// Worker registry
// ──────────────────────────────────────────────────────────────────────────────

func TestWorker_PublishesStats(t *testing.T) {
	release := make(chan struct{})
	m, _ := newTestManager(t,
		registry.Handle(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) {
			<-release
			return "ok", nil
		}),
	)
	defer close(release)

	_, err := m.Submit(context.Background(), core.UpdatePricesArgs{})
	require.NoError(t, err)
	startWorker(t, NewWorker(m, fastTimings(), Concurrency(3), WithWorkerID("stats-worker")))

	require.Eventually(t, func() bool {
		stats := m.WorkerStats(context.Background())
		return stats.WorkerCount == 1 && stats.ActiveTasks == 1
	}, 5*time.Second, 10*time.Millisecond)

	stats := m.WorkerStats(context.Background())
	assert.Equal(t, "stats-worker", stats.Workers[0].ID)
	assert.Equal(t, 3, stats.Workers[0].PoolSize)

	active := m.ListActive(context.Background())
	require.Len(t, active.Jobs, 1)
	assert.Equal(t, "stats-worker", active.Jobs[0].WorkerID)
}
