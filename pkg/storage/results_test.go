package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

func TestGetStatus_Missing(t *testing.T) {
	s := newTestStorage(t)

	rec, err := s.GetStatus(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSaveStatus_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{
		JobID: "j1", Kind: core.KindUpdatePrices, State: core.StateProgress, WorkerID: "w1",
	}))
	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{
		JobID: "j1", Kind: core.KindUpdatePrices, State: core.StateProgress, WorkerID: "w1",
		Progress: &core.Progress{Current: 2, Total: 5, Status: "AAPL"},
	}))

	rec, err := s.GetStatus(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, core.StateProgress, rec.State)
	require.NotNil(t, rec.Progress)
	assert.Equal(t, core.Progress{Current: 2, Total: 5, Status: "AAPL"}, *rec.Progress)
	assert.Nil(t, rec.ExpiresAt, "non-terminal records do not expire")

	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{
		JobID: "j1", Kind: core.KindUpdatePrices, State: core.StateSuccess,
		Result: json.RawMessage(`{"succeeded":[],"failed":[]}`),
	}))

	rec, err = s.GetStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, core.StateSuccess, rec.State)
	assert.JSONEq(t, `{"succeeded":[],"failed":[]}`, string(rec.Result))
	assert.NotNil(t, rec.ExpiresAt)
}

func TestSaveStatus_RejectsRegression(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{JobID: "j1", State: core.StateProgress}))

	err := s.SaveStatus(ctx, &core.StatusRecord{JobID: "j1", State: core.StatePending})
	assert.ErrorIs(t, err, core.ErrStateRegression)
}

func TestSaveStatus_TerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{JobID: "j1", State: core.StateRevoked}))

	for _, next := range []core.State{core.StateProgress, core.StateSuccess, core.StateFailure, core.StateRevoked} {
		err := s.SaveStatus(ctx, &core.StatusRecord{JobID: "j1", State: next})
		assert.ErrorIs(t, err, core.ErrStateRegression, "write %s over REVOKED", next)
	}

	rec, err := s.GetStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, core.StateRevoked, rec.State)
}

func TestSaveStatus_RejectsResultWithError(t *testing.T) {
	s := newTestStorage(t)

	err := s.SaveStatus(context.Background(), &core.StatusRecord{
		JobID: "j1", State: core.StateFailure,
		Result: json.RawMessage(`{}`), Error: "boom",
	})
	assert.ErrorIs(t, err, core.ErrConflictingResult)
}

func TestStatus_RetentionExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
	s := newTestStorage(t, WithClock(clock.Now), WithRetention(time.Hour))

	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{JobID: "j1", State: core.StateFailure, Error: "boom"}))
	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{JobID: "j2", State: core.StateProgress}))

	clock.Advance(59 * time.Minute)
	rec, err := s.GetStatus(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, rec)

	clock.Advance(2 * time.Minute)
	rec, err = s.GetStatus(ctx, "j1")
	require.NoError(t, err)
	assert.Nil(t, rec, "expired record reads as missing")

	n, err := s.PurgeExpiredResults(ctx, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err = s.GetStatus(ctx, "j2")
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestStatus_ZeroRetentionKeepsRecords(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t, WithRetention(0))

	require.NoError(t, s.SaveStatus(ctx, &core.StatusRecord{JobID: "j1", State: core.StateSuccess}))

	rec, err := s.GetStatus(ctx, "j1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Nil(t, rec.ExpiresAt)
}
