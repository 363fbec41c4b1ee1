package tasks

import (
	"context"
	"errors"
	"strings"

	"github.com/jdziat/portfolio-jobs/internal/marketdata"
	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
)

// AssetInfoResult is the result of an asset-info lookup.
type AssetInfoResult struct {
	marketdata.AssetInfo
	// AssetUpdated is true when a matching asset row was refreshed.
	AssetUpdated bool `json:"asset_updated"`
}

// FetchAssetInfo looks up one ticker and refreshes the matching asset row
// if there is one.
func (h *Handlers) FetchAssetInfo(ctx context.Context, args core.FetchAssetInfoArgs) (*AssetInfoResult, error) {
	ticker := strings.ToUpper(strings.TrimSpace(args.Ticker))
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}
	jobctx.ReportProgress(ctx, 0, 1, "Fetching "+ticker)

	info, err := h.market.AssetInfo(ctx, ticker)
	if err != nil {
		return nil, err
	}
	res := &AssetInfoResult{AssetInfo: *info}

	err = h.store.Session(ctx, func(tx *portfolio.Tx) error {
		asset, err := tx.AssetByTicker(ticker)
		if errors.Is(err, portfolio.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		asset.Name = info.Name
		asset.AssetType = info.QuoteType
		asset.Sector = info.Sector
		asset.Industry = info.Industry
		asset.Exchange = info.Exchange
		asset.Country = info.Country
		asset.MarketCap = info.MarketCap
		if info.CurrentPrice > 0 {
			asset.CurrentPrice = info.CurrentPrice
		}
		if err := tx.UpdateAsset(asset); err != nil {
			return err
		}
		res.AssetUpdated = true
		return jobctx.Stopped(ctx)
	})
	if err != nil {
		return nil, err
	}

	jobctx.ReportProgress(ctx, 1, 1, "Done")
	return res, nil
}
