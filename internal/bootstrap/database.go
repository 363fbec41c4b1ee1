package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/portfolio-jobs/internal/config"
	"github.com/jdziat/portfolio-jobs/pkg/storage"
)

// OpenDatabase connects to the configured database and sizes its pool.
// SQLite is limited to one connection. Postgres uses base, which callers
// pick per process (storage.WorkerPoolConfig for workers), overridden by
// any pool values set in cfg.
func OpenDatabase(cfg config.DBConfig, base storage.PoolConfig, log *slog.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		dialector = sqlite.Open(cfg.DSN)
		base = storage.SQLitePoolConfig()
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	opts := []storage.PoolOption{storage.WithPoolConfig(base)}
	if cfg.MaxOpenConns > 0 {
		opts = append(opts, storage.MaxOpenConns(cfg.MaxOpenConns))
	}
	if cfg.MaxIdleConns > 0 {
		opts = append(opts, storage.MaxIdleConns(cfg.MaxIdleConns))
	}
	if cfg.ConnMaxLifetime > 0 {
		opts = append(opts, storage.ConnMaxLifetime(cfg.ConnMaxLifetime))
	}
	if cfg.ConnMaxIdleTime > 0 {
		opts = append(opts, storage.ConnMaxIdleTime(cfg.ConnMaxIdleTime))
	}
	pool, err := storage.ConfigurePool(db, opts...)
	if err != nil {
		return nil, fmt.Errorf("configure pool: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pingErr := sqlDB.PingContext(ctx); pingErr != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close database connection: %w", closeErr))
		}
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	if log != nil {
		log.Info("database connected", "driver", cfg.Driver, "max_open_conns", pool.MaxOpenConns)
	}
	return db, nil
}

// ConnectRedis establishes a connection to Redis.
func ConnectRedis(cfg config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if pingErr := client.Ping(ctx).Err(); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if log != nil {
		log.Info("redis connected", "addr", cfg.Addr, "db", cfg.DB)
	}
	return client, nil
}
