package storage

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// SaveStatus writes a status record. Writes that would move the record
// backwards, or touch a terminal record, fail with core.ErrStateRegression.
func (s *GormStorage) SaveStatus(ctx context.Context, rec *core.StatusRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev *core.StatusRecord
		var existing core.StatusRecord
		q := tx
		if !s.IsSQLite() {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		err := q.First(&existing, "job_id = ?", rec.JobID).Error
		switch {
		case err == nil:
			if !s.expired(&existing) {
				prev = &existing
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
		default:
			return err
		}

		if err := core.CheckStatusWrite(prev, rec); err != nil {
			return err
		}

		now := s.now()
		rec.UpdatedAt = now
		rec.ExpiresAt = nil
		if rec.State.Terminal() && s.retention > 0 {
			expires := now.Add(s.retention)
			rec.ExpiresAt = &expires
		}
		return tx.Save(rec).Error
	})
}

// GetStatus returns the status record for jobID, or nil when none exists
// or it has expired.
func (s *GormStorage) GetStatus(ctx context.Context, jobID string) (*core.StatusRecord, error) {
	var rec core.StatusRecord
	err := s.db.WithContext(ctx).First(&rec, "job_id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.expired(&rec) {
		return nil, nil
	}
	return &rec, nil
}

// PurgeExpiredResults deletes status records whose retention ran out.
func (s *GormStorage) PurgeExpiredResults(ctx context.Context, now time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&core.StatusRecord{})
	return result.RowsAffected, result.Error
}

func (s *GormStorage) expired(rec *core.StatusRecord) bool {
	return rec.ExpiresAt != nil && !rec.ExpiresAt.After(s.now())
}
