package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/portfolio-jobs/internal/mocks"
	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
)

// fixedNow is Monday 2024-06-03 17:00 UTC.
var fixedNow = time.Date(2024, 6, 3, 17, 0, 0, 0, time.UTC)

func openPortfolio(t *testing.T) *portfolio.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := portfolio.NewStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type fixture struct {
	store    *portfolio.Store
	provider *mocks.MockProvider
	handlers *Handlers
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := openPortfolio(t)
	provider := mocks.NewMockProvider(gomock.NewController(t))
	return &fixture{
		store:    store,
		provider: provider,
		handlers: New(Deps{
			Store:  store,
			Market: provider,
			Now:    func() time.Time { return fixedNow },
		}),
	}
}

func (f *fixture) seed(t *testing.T, rows ...any) {
	t.Helper()
	require.NoError(t, f.store.Session(context.Background(), func(tx *portfolio.Tx) error {
		for _, r := range rows {
			if err := tx.Create(r); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (f *fixture) view(t *testing.T, fn func(tx *portfolio.Tx)) {
	t.Helper()
	require.NoError(t, f.store.View(context.Background(), func(tx *portfolio.Tx) error {
		fn(tx)
		return nil
	}))
}

// progressLog records progress reports for a handler run outside a worker.
type progressLog struct {
	mu      sync.Mutex
	reports []core.Progress
}

func (p *progressLog) report(pr core.Progress) {
	p.mu.Lock()
	p.reports = append(p.reports, pr)
	p.mu.Unlock()
}

func (p *progressLog) all() []core.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]core.Progress(nil), p.reports...)
}

func jobContext(ctx context.Context, kind core.Kind) (context.Context, *progressLog) {
	log := &progressLog{}
	return jobctx.WithJob(ctx, &core.Job{ID: "test-job", Kind: kind}, log.report), log
}

func uintPtr(v uint) *uint { return &v }
