package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	_ "time/tzdata" // scheduler and handler time zones

	"gorm.io/gorm"

	"github.com/jdziat/portfolio-jobs/internal/config"
	"github.com/jdziat/portfolio-jobs/internal/marketdata"
	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/internal/tasks"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/manager"
	"github.com/jdziat/portfolio-jobs/pkg/resultstore"
	"github.com/jdziat/portfolio-jobs/pkg/schedule"
	"github.com/jdziat/portfolio-jobs/pkg/storage"
	"github.com/jdziat/portfolio-jobs/pkg/worker"
)

// Role sizes connection pools for the process being started.
type Role int

const (
	// RoleClient submits and inspects jobs.
	RoleClient Role = iota
	// RoleWorker executes jobs.
	RoleWorker
)

// App holds the wired components shared by every command.
type App struct {
	Config    config.AppConfig
	Logger    *slog.Logger
	Jobs      *storage.GormStorage
	Results   core.ResultStore
	Portfolio *portfolio.Store
	Handlers  *tasks.Handlers
	Manager   *manager.Manager

	closers []func() error
}

// AppOption customizes New.
type AppOption func(*appOptions)

type appOptions struct {
	market marketdata.Provider
	now    func() time.Time
}

// WithMarketData replaces the Yahoo Finance provider.
func WithMarketData(p marketdata.Provider) AppOption {
	return func(o *appOptions) { o.market = p }
}

// WithClock overrides the time source of the handlers and stores.
func WithClock(now func() time.Time) AppOption {
	return func(o *appOptions) { o.now = now }
}

// New opens the databases and result store, migrates them and builds the
// manager with every job kind registered.
func New(ctx context.Context, cfg config.AppConfig, role Role, log *slog.Logger, opts ...AppOption) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	o := appOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{Config: cfg, Logger: log}
	ok := false
	defer func() {
		if !ok {
			_ = app.Close()
		}
	}()

	pool := storage.DefaultPoolConfig()
	if role == RoleWorker {
		pool = storage.WorkerPoolConfig(cfg.Worker.Concurrency)
	}

	jobsDB, err := OpenDatabase(cfg.DB, pool, log.With("db", "jobs"))
	if err != nil {
		return nil, fmt.Errorf("jobs database: %w", err)
	}
	app.closeDB(jobsDB)
	app.Jobs = storage.NewGormStorage(jobsDB,
		storage.WithRetention(cfg.Results.Retention),
		storage.WithClock(o.now),
	)
	if err := app.Jobs.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate jobs database: %w", err)
	}

	portfolioDB, err := OpenDatabase(cfg.PortfolioDB, pool, log.With("db", "portfolio"))
	if err != nil {
		return nil, fmt.Errorf("portfolio database: %w", err)
	}
	app.closeDB(portfolioDB)
	app.Portfolio = portfolio.NewStore(portfolioDB)
	if err := app.Portfolio.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate portfolio database: %w", err)
	}

	app.Results, err = app.openResults(cfg, log)
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	market := o.market
	if market == nil {
		market = marketdata.NewYahoo(cfg.MarketData.Timeout, log)
	}
	app.Handlers = tasks.New(tasks.Deps{
		Store:    app.Portfolio,
		Market:   market,
		Logger:   log,
		Location: loc,
		Now:      o.now,
	})
	reg, err := app.Handlers.Registry()
	if err != nil {
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	app.Manager = manager.New(app.Jobs, app.Results, reg,
		manager.WithLogger(log),
		manager.WithWorkerRegistry(app.Jobs),
		manager.WithClock(o.now),
	)
	ok = true
	return app, nil
}

func (a *App) openResults(cfg config.AppConfig, log *slog.Logger) (core.ResultStore, error) {
	if cfg.Results.Backend != config.ResultBackendRedis {
		return a.Jobs, nil
	}
	client, err := ConnectRedis(cfg.Redis, log)
	if err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return resultstore.New(client,
		resultstore.WithPrefix(cfg.Redis.Prefix),
		resultstore.WithRetention(cfg.Results.Retention),
	), nil
}

func (a *App) closeDB(db *gorm.DB) {
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
}

// NewWorker builds a worker from the worker config. opts are applied last.
func (a *App) NewWorker(opts ...worker.WorkerOption) *worker.Worker {
	wc := a.Config.Worker
	base := make([]worker.WorkerOption, 0, len(wc.Queues)+5)
	for _, q := range wc.Queues {
		base = append(base, worker.WorkerQueue(q))
	}
	base = append(base,
		worker.Concurrency(wc.Concurrency),
		worker.WithPollInterval(wc.PollInterval),
		worker.WithTimeLimits(wc.SoftTimeLimit, wc.HardTimeLimit),
		worker.WithLocking(wc.LockDuration, wc.LockDuration/3),
		worker.WithLogger(a.Logger),
	)
	return worker.NewWorker(a.Manager, append(base, opts...)...)
}

// NewReaper builds the lost-claim reaper.
func (a *App) NewReaper() *worker.Reaper {
	return worker.NewReaper(a.Manager, a.Config.Worker.ReapInterval)
}

// NewPurger builds the retention purger.
func (a *App) NewPurger() *worker.Purger {
	return worker.NewPurger(a.Manager, a.Config.Worker.PurgeInterval, a.Config.Results.Retention)
}

// NewScheduler builds the scheduler over the portfolio schedule table.
func (a *App) NewScheduler(opts ...schedule.Option) (*schedule.Scheduler, error) {
	loc, err := time.LoadLocation(a.Config.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Config.Scheduler.Timezone, err)
	}
	base := []schedule.Option{
		schedule.WithLocation(loc),
		schedule.WithLogger(a.Logger),
	}
	return schedule.New(a.Manager, tasks.ScheduleTable(a.Config.Scheduler.SkipIfActive), append(base, opts...)...)
}

// Close releases every connection opened by New.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
