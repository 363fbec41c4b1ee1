package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/portfolio-jobs/pkg/core"
)

type perfResult struct {
	TotalReturn float64 `json:"total_return"`
}

func TestNew_RejectsNil(t *testing.T) {
	_, err := New[core.CalculatePerformanceArgs, perfResult](nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nil")
}

func TestTyped_KindFromArgs(t *testing.T) {
	h, err := New(func(ctx context.Context, a core.CreateSnapshotArgs) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.Equal(t, core.KindCreateSnapshot, h.Kind())
}

func TestTyped_Execute(t *testing.T) {
	var seen core.CalculatePerformanceArgs
	h, err := New(func(ctx context.Context, a core.CalculatePerformanceArgs) (perfResult, error) {
		seen = a
		return perfResult{TotalReturn: 12.5}, nil
	})
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), []byte(`{"user_id":7,"days_back":30}`))
	require.NoError(t, err)
	assert.Equal(t, uint(7), seen.UserID)
	assert.Equal(t, 30, seen.DaysBack)
	assert.JSONEq(t, `{"total_return":12.5}`, string(out))
}

func TestTyped_EmptyArgsDecodeAsZero(t *testing.T) {
	called := 0
	h, err := New(func(ctx context.Context, a core.UpdatePricesArgs) (string, error) {
		called++
		assert.Nil(t, a.UserID)
		return "ok", nil
	})
	require.NoError(t, err)

	for _, raw := range [][]byte{nil, []byte("null"), []byte("{}")} {
		_, err := h.Execute(context.Background(), raw)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, called)
}

func TestTyped_BadArgs(t *testing.T) {
	h, err := New(func(ctx context.Context, a core.FetchAssetInfoArgs) (string, error) {
		t.Fatal("must not be called")
		return "", nil
	})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), []byte(`{"ticker":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal args")
}

func TestTyped_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	h, err := New(func(ctx context.Context, a core.FetchAssetInfoArgs) (string, error) {
		return "ignored", boom
	})
	require.NoError(t, err)

	out, err := h.Execute(context.Background(), []byte(`{"ticker":"AAPL"}`))
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}

func TestTyped_UnencodableResult(t *testing.T) {
	h, err := New(func(ctx context.Context, a core.FetchAssetInfoArgs) (chan int, error) {
		return make(chan int), nil
	})
	require.NoError(t, err)

	_, err = h.Execute(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "marshal result")
}
