// Package storage provides storage implementations for the jobs package.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// DefaultRetention is how long finished status records stay visible.
const DefaultRetention = time.Hour

// GormStorage implements core.Broker, core.ResultStore and
// core.WorkerRegistry using GORM.
type GormStorage struct {
	db        *gorm.DB
	retention time.Duration
	now       func() time.Time
}

// Option configures a GormStorage.
type Option interface {
	applyStorage(*GormStorage)
}

type optionFunc func(*GormStorage)

func (f optionFunc) applyStorage(s *GormStorage) { f(s) }

// WithRetention sets how long terminal status records are kept.
// Zero keeps them until purged explicitly.
func WithRetention(d time.Duration) Option {
	return optionFunc(func(s *GormStorage) {
		s.retention = d
	})
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(s *GormStorage) {
		s.now = now
	})
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB, opts ...Option) *GormStorage {
	s := &GormStorage{db: db, retention: DefaultRetention, now: time.Now}
	for _, opt := range opts {
		opt.applyStorage(s)
	}
	return s
}

// DB returns the underlying database handle.
func (s *GormStorage) DB() *gorm.DB {
	return s.db
}

// IsSQLite reports whether the storage runs on SQLite, which has no row locking.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.Job{}, &core.StatusRecord{}, &core.WorkerInfo{})
}

// Enqueue adds a job to the queue.
func (s *GormStorage) Enqueue(ctx context.Context, job *core.Job) error {
	s.fillDefaults(job)
	return s.db.WithContext(ctx).Create(job).Error
}

// EnqueueUnique adds a job only if no job with the same unique key is queued or claimed.
func (s *GormStorage) EnqueueUnique(ctx context.Context, job *core.Job, uniqueKey string) error {
	s.fillDefaults(job)
	job.UniqueKey = uniqueKey

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&core.Job{}).
			Where("unique_key = ?", uniqueKey).
			Where("status IN ?", []core.JobStatus{core.StatusQueued, core.StatusClaimed}).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return core.ErrDuplicateJob
		}
		return tx.Create(job).Error
	})
}

func (s *GormStorage) fillDefaults(job *core.Job) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = core.StatusQueued
	}
	if job.Queue == "" {
		job.Queue = "default"
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = s.now()
	}
}

// Dequeue claims the oldest queued job for workerID. It returns nil when
// nothing is queued. A claim only succeeds if the row is still queued, so
// two workers never hold the same job.
func (s *GormStorage) Dequeue(ctx context.Context, queues []string, workerID string, lockFor time.Duration) (*core.Job, error) {
	var job core.Job
	now := s.now()
	lockUntil := now.Add(lockFor)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.
			Where("queue IN ?", queues).
			Where("status = ?", core.StatusQueued).
			Where("revoke_requested = ?", false).
			Order("submitted_at ASC")
		if !s.IsSQLite() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		if err := q.First(&job).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		res := tx.Model(&core.Job{}).
			Where("id = ? AND status = ?", job.ID, core.StatusQueued).
			Updates(map[string]any{
				"status":       core.StatusClaimed,
				"locked_by":    workerID,
				"locked_until": lockUntil,
				"started_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race to another worker.
			job = core.Job{}
			return nil
		}

		job.Status = core.StatusClaimed
		job.LockedBy = workerID
		job.LockedUntil = &lockUntil
		job.StartedAt = &now
		return nil
	})

	if err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, nil
	}
	return &job, nil
}

// Ack marks a claimed job as finished on the broker.
// Validates that the worker owns the job.
func (s *GormStorage) Ack(ctx context.Context, jobID string, workerID string) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND locked_by = ? AND status = ?", jobID, workerID, core.StatusClaimed).
		Updates(map[string]any{
			"status":       core.StatusAcked,
			"finished_at":  s.now(),
			"locked_by":    "",
			"locked_until": nil,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotOwned
	}
	return nil
}

// Revoke records a cancellation request. A queued job is revoked on the
// spot; a claimed job keeps running until its worker notices the flag.
// The returned status is the one the job had before the call, or "" when
// the job is unknown.
func (s *GormStorage) Revoke(ctx context.Context, jobID string) (core.JobStatus, error) {
	var previous core.JobStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var job core.Job
		if err := tx.First(&job, "id = ?", jobID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		previous = job.Status

		if job.Status == core.StatusQueued {
			res := tx.Model(&core.Job{}).
				Where("id = ? AND status = ?", jobID, core.StatusQueued).
				Updates(map[string]any{
					"status":           core.StatusRevoked,
					"revoke_requested": true,
					"finished_at":      s.now(),
				})
			if res.Error != nil || res.RowsAffected == 1 {
				return res.Error
			}
			// Claimed by a worker since the read above.
			var current core.Job
			if err := tx.Select("status").First(&current, "id = ?", jobID).Error; err != nil {
				return err
			}
			previous = current.Status
		}

		switch previous {
		case core.StatusClaimed:
			return tx.Model(&core.Job{}).
				Where("id = ?", jobID).
				Update("revoke_requested", true).Error
		default:
			return nil
		}
	})

	return previous, err
}

// RevokeRequested reports whether a cancellation was requested for jobID.
func (s *GormStorage) RevokeRequested(ctx context.Context, jobID string) (bool, error) {
	var job core.Job
	err := s.db.WithContext(ctx).
		Select("revoke_requested").
		First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return job.RevokeRequested, nil
}

// Heartbeat extends the lock on a claimed job.
func (s *GormStorage) Heartbeat(ctx context.Context, jobID string, workerID string, lockFor time.Duration) error {
	result := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND locked_by = ? AND status = ?", jobID, workerID, core.StatusClaimed).
		Update("locked_until", s.now().Add(lockFor))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return core.ErrJobNotOwned
	}
	return nil
}

// ExpiredClaims returns claimed jobs whose lock ran out, i.e. whose worker
// stopped heartbeating.
func (s *GormStorage) ExpiredClaims(ctx context.Context, now time.Time) ([]*core.Job, error) {
	var jobList []*core.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", core.StatusClaimed).
		Where("locked_until < ?", now).
		Find(&jobList).Error
	return jobList, err
}

// ReleaseClaim finishes a claimed job regardless of owner. The reaper uses
// it after recording the job as failed.
func (s *GormStorage) ReleaseClaim(ctx context.Context, jobID string) error {
	return s.db.WithContext(ctx).
		Model(&core.Job{}).
		Where("id = ? AND status = ?", jobID, core.StatusClaimed).
		Updates(map[string]any{
			"status":       core.StatusAcked,
			"finished_at":  s.now(),
			"locked_by":    "",
			"locked_until": nil,
		}).Error
}

// GetJob retrieves a job by ID.
func (s *GormStorage) GetJob(ctx context.Context, jobID string) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJobsByStatus retrieves jobs by status, oldest first.
func (s *GormStorage) GetJobsByStatus(ctx context.Context, status core.JobStatus, limit int) ([]*core.Job, error) {
	var jobList []*core.Job
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("submitted_at ASC").
		Limit(limit).
		Find(&jobList).Error
	return jobList, err
}

// PurgeFinished deletes acked and revoked broker rows finished before the cutoff.
func (s *GormStorage) PurgeFinished(ctx context.Context, before time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("status IN ?", []core.JobStatus{core.StatusAcked, core.StatusRevoked}).
		Where("finished_at < ?", before).
		Delete(&core.Job{})
	return result.RowsAffected, result.Error
}
