// Package resultstore provides a Redis-backed core.ResultStore.
//
// Records are stored as JSON under prefix+jobID. Terminal records get the
// retention as their TTL, so expiry needs no purge pass.
package resultstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

// DefaultPrefix namespaces status keys.
const DefaultPrefix = "jobs:status:"

// maxTxAttempts bounds optimistic-lock retries when writers collide.
const maxTxAttempts = 5

// RedisStore is a core.ResultStore on Redis.
type RedisStore struct {
	client    redis.UniversalClient
	prefix    string
	retention time.Duration
}

// Option configures a RedisStore.
type Option func(*RedisStore)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *RedisStore) { s.prefix = prefix }
}

// WithRetention sets the TTL of terminal records. Zero keeps them forever.
func WithRetention(d time.Duration) Option {
	return func(s *RedisStore) { s.retention = d }
}

// New creates a RedisStore.
func New(client redis.UniversalClient, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:    client,
		prefix:    DefaultPrefix,
		retention: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(jobID string) string {
	return s.prefix + jobID
}

// SaveStatus writes rec unless it would regress the stored record.
// The read-check-write runs under WATCH so a concurrent writer forces a retry.
func (s *RedisStore) SaveStatus(ctx context.Context, rec *core.StatusRecord) error {
	if rec.JobID == "" {
		return errors.New("resultstore: job ID cannot be empty")
	}
	key := s.key(rec.JobID)

	txf := func(tx *redis.Tx) error {
		prev, err := s.read(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := core.CheckStatusWrite(prev, rec); err != nil {
			return err
		}

		now := time.Now()
		rec.UpdatedAt = now
		rec.ExpiresAt = nil
		var ttl time.Duration
		if rec.State.Terminal() && s.retention > 0 {
			expires := now.Add(s.retention)
			rec.ExpiresAt = &expires
			ttl = s.retention
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal status: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			return nil
		})
		return err
	}

	for range maxTxAttempts {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("resultstore: save %s: %w", rec.JobID, redis.TxFailedErr)
}

// GetStatus returns the record for jobID, or nil when none exists.
func (s *RedisStore) GetStatus(ctx context.Context, jobID string) (*core.StatusRecord, error) {
	if jobID == "" {
		return nil, nil
	}
	return s.read(ctx, s.client, s.key(jobID))
}

func (s *RedisStore) read(ctx context.Context, c redis.Cmdable, key string) (*core.StatusRecord, error) {
	data, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var rec core.StatusRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal status: %w", err)
	}
	return &rec, nil
}

var _ core.ResultStore = (*RedisStore)(nil)
