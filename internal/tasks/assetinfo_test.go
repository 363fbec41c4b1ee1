package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jdziat/portfolio-jobs/internal/marketdata"
	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/core"
)

var appleInfo = &marketdata.AssetInfo{
	Ticker:       "AAPL",
	Name:         "Apple Inc.",
	QuoteType:    "EQUITY",
	Sector:       "Technology",
	Industry:     "Consumer Electronics",
	Exchange:     "NMS",
	Country:      "United States",
	MarketCap:    3e12,
	CurrentPrice: 190,
}

func TestFetchAssetInfo_UpdatesKnownAsset(t *testing.T) {
	f := newFixture(t)
	f.seed(t, &portfolio.Asset{Ticker: "AAPL", CurrentPrice: 150})
	f.provider.EXPECT().AssetInfo(gomock.Any(), "AAPL").Return(appleInfo, nil)

	res, err := f.handlers.FetchAssetInfo(context.Background(), core.FetchAssetInfoArgs{Ticker: " aapl "})
	require.NoError(t, err)
	assert.True(t, res.AssetUpdated)
	assert.Equal(t, "Apple Inc.", res.Name)

	f.view(t, func(tx *portfolio.Tx) {
		a, err := tx.AssetByTicker("AAPL")
		require.NoError(t, err)
		assert.Equal(t, "Apple Inc.", a.Name)
		assert.Equal(t, "EQUITY", a.AssetType)
		assert.Equal(t, "Technology", a.Sector)
		assert.Equal(t, 190.0, a.CurrentPrice)
	})
}

func TestFetchAssetInfo_UnknownAssetStillReported(t *testing.T) {
	f := newFixture(t)
	f.provider.EXPECT().AssetInfo(gomock.Any(), "AAPL").Return(appleInfo, nil)

	res, err := f.handlers.FetchAssetInfo(context.Background(), core.FetchAssetInfoArgs{Ticker: "AAPL"})
	require.NoError(t, err)
	assert.False(t, res.AssetUpdated)
	assert.Equal(t, "NMS", res.Exchange)
}

func TestFetchAssetInfo_Errors(t *testing.T) {
	f := newFixture(t)
	_, err := f.handlers.FetchAssetInfo(context.Background(), core.FetchAssetInfoArgs{})
	assert.Error(t, err)

	f.provider.EXPECT().AssetInfo(gomock.Any(), "NOPE").Return(nil, errors.New("404"))
	_, err = f.handlers.FetchAssetInfo(context.Background(), core.FetchAssetInfoArgs{Ticker: "NOPE"})
	assert.EqualError(t, err, "404")
}
