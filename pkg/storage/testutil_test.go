package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance held on one connection.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "open postgres test db")

		_, err = ConfigurePool(db, MaxOpenConns(4), MaxIdleConns(1))
		require.NoError(t, err)

		cleanupPostgresDB(t, db)
		t.Cleanup(func() {
			cleanupPostgresDB(t, db)
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
		return db
	}
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")
	_, err = ConfigurePool(db, WithPoolConfig(SQLitePoolConfig()))
	require.NoError(t, err)
	return db
}

// cleanupPostgresDB deletes all rows so tests are isolated without a
// fresh database per test.
func cleanupPostgresDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, tbl := range []string{"job_results", "worker_infos", "jobs"} {
		db.Exec("DELETE FROM " + tbl)
	}
}

// newTestStorage returns a migrated storage instance.
func newTestStorage(t *testing.T, opts ...Option) *GormStorage {
	t.Helper()
	s := NewGormStorage(openTestDB(t), opts...)
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return s
}

// newTestJob builds a minimal valid Job for insertion in tests.
func newTestJob(queue string, kind core.Kind) *core.Job {
	return &core.Job{
		Kind:  kind,
		Queue: queue,
		Args:  []byte(`{}`),
	}
}

// fakeClock is a settable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }
