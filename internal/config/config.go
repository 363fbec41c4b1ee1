// Package config holds the application configuration, loaded from
// environment variables with github.com/caarlos0/env.
package config

import (
	"strings"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/security"
)

// AppConfig is the root configuration.
type AppConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// DB holds the job broker and, with the database backend, job results.
	DB DBConfig `envPrefix:"DB_"`
	// PortfolioDB is the store the handlers work on. An empty DSN reuses a
	// postgres DB; with sqlite it gets its own file, since a job's
	// transaction would otherwise lock out the worker's status writes.
	PortfolioDB DBConfig `envPrefix:"PORTFOLIO_DB_"`

	Results    ResultConfig     `envPrefix:"RESULT_"`
	Redis      RedisConfig      `envPrefix:"REDIS_"`
	Worker     WorkerConfig     `envPrefix:"WORKER_"`
	Scheduler  SchedulerConfig  `envPrefix:"SCHEDULER_"`
	MarketData MarketDataConfig `envPrefix:"MARKET_DATA_"`
}

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DBConfig selects and tunes a database connection. Zero pool values keep
// the driver's preset.
type DBConfig struct {
	Driver          string        `env:"DRIVER"             envDefault:"sqlite"`
	DSN             string        `env:"DSN"`
	MaxOpenConns    int           `env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME"`
	ConnMaxIdleTime time.Duration `env:"CONN_MAX_IDLE_TIME"`
}

// Result store backends.
const (
	ResultBackendDatabase = "database"
	ResultBackendRedis    = "redis"
)

// ResultConfig selects where job status records live.
type ResultConfig struct {
	Backend   string        `env:"BACKEND"   envDefault:"database"`
	Retention time.Duration `env:"RETENTION" envDefault:"1h"`
}

// RedisConfig is used by the redis result backend.
type RedisConfig struct {
	Addr     string `env:"ADDR"     envDefault:"localhost:6379"`
	Password string `env:"PASSWORD" envDefault:""`
	DB       int    `env:"DB"       envDefault:"0"`
	Prefix   string `env:"PREFIX"   envDefault:"jobs:status:"`
}

// WorkerConfig tunes the worker process.
type WorkerConfig struct {
	Concurrency   int           `env:"CONCURRENCY"     envDefault:"4"`
	Queues        []string      `env:"QUEUES"          envDefault:"default"`
	PollInterval  time.Duration `env:"POLL_INTERVAL"   envDefault:"1s"`
	SoftTimeLimit time.Duration `env:"SOFT_TIME_LIMIT" envDefault:"25m"`
	HardTimeLimit time.Duration `env:"HARD_TIME_LIMIT" envDefault:"30m"`
	LockDuration  time.Duration `env:"LOCK_DURATION"   envDefault:"2m"`
	ReapInterval  time.Duration `env:"REAP_INTERVAL"   envDefault:"1m"`
	PurgeInterval time.Duration `env:"PURGE_INTERVAL"  envDefault:"10m"`
}

// SchedulerConfig tunes the scheduler process.
type SchedulerConfig struct {
	Timezone     string `env:"TIMEZONE"       envDefault:"America/New_York"`
	SkipIfActive bool   `env:"SKIP_IF_ACTIVE" envDefault:"false"`
}

// MarketDataConfig tunes the market-data provider.
type MarketDataConfig struct {
	Timeout time.Duration `env:"TIMEOUT" envDefault:"30s"`
}

// Sanitize applies guardrails to values loaded from env.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.DB.Sanitize()
	if strings.TrimSpace(c.PortfolioDB.DSN) == "" {
		c.PortfolioDB = c.DB
		if c.DB.Driver == DriverSQLite {
			c.PortfolioDB.DSN = "portfolio.db"
		}
	} else {
		c.PortfolioDB.Sanitize()
	}
	c.Results.Sanitize()
	c.Worker.Sanitize()
	if strings.TrimSpace(c.Scheduler.Timezone) == "" {
		c.Scheduler.Timezone = "UTC"
	}
	if c.MarketData.Timeout <= 0 {
		c.MarketData.Timeout = 30 * time.Second
	}
}

// Sanitize normalizes the driver and fills the default DSN.
func (c *DBConfig) Sanitize() {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	switch c.Driver {
	case "postgresql", "pg", "pgx":
		c.Driver = DriverPostgres
	case DriverPostgres:
	default:
		c.Driver = DriverSQLite
	}
	if strings.TrimSpace(c.DSN) == "" && c.Driver == DriverSQLite {
		c.DSN = "portfolio-jobs.db"
	}
	c.MaxOpenConns = max(c.MaxOpenConns, 0)
	c.MaxIdleConns = max(c.MaxIdleConns, 0)
}

// Sanitize falls back to the database backend and a one-hour retention.
func (c *ResultConfig) Sanitize() {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend != ResultBackendRedis {
		c.Backend = ResultBackendDatabase
	}
	if c.Retention <= 0 {
		c.Retention = time.Hour
	}
}

// Sanitize clamps concurrency and time limits and drops blank queues.
func (c *WorkerConfig) Sanitize() {
	c.Concurrency = security.ClampConcurrency(c.Concurrency)
	c.SoftTimeLimit, c.HardTimeLimit = security.ClampTimeLimits(c.SoftTimeLimit, c.HardTimeLimit)

	queues := c.Queues[:0]
	for _, q := range c.Queues {
		if q = strings.TrimSpace(q); q != "" {
			queues = append(queues, q)
		}
	}
	if len(queues) == 0 {
		queues = []string{"default"}
	}
	c.Queues = queues

	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.LockDuration <= 0 {
		c.LockDuration = 2 * time.Minute
	}
	if c.ReapInterval <= 0 {
		c.ReapInterval = c.LockDuration / 2
	}
	if c.PurgeInterval <= 0 {
		c.PurgeInterval = 10 * time.Minute
	}
}
