package storage

import (
	"context"
	"time"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// UpsertWorker records a worker heartbeat.
func (s *GormStorage) UpsertWorker(ctx context.Context, info *core.WorkerInfo) error {
	return s.db.WithContext(ctx).Save(info).Error
}

// RemoveWorker deletes a worker's heartbeat row on clean shutdown.
func (s *GormStorage) RemoveWorker(ctx context.Context, workerID string) error {
	return s.db.WithContext(ctx).Delete(&core.WorkerInfo{}, "id = ?", workerID).Error
}

// ListWorkers returns workers that heartbeated at or after seenSince.
func (s *GormStorage) ListWorkers(ctx context.Context, seenSince time.Time) ([]*core.WorkerInfo, error) {
	var workers []*core.WorkerInfo
	err := s.db.WithContext(ctx).
		Where("last_seen_at >= ?", seenSince).
		Order("id ASC").
		Find(&workers).Error
	return workers, err
}

// Compile-time interface checks.
var (
	_ core.Broker         = (*GormStorage)(nil)
	_ core.ResultStore    = (*GormStorage)(nil)
	_ core.WorkerRegistry = (*GormStorage)(nil)
)
