package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
)

// UpdatePricesResult is the result of a price update.
type UpdatePricesResult struct {
	UpdatedCount int           `json:"updated_count"`
	FailedCount  int           `json:"failed_count"`
	TotalTickers int           `json:"total_tickers"`
	Failures     []ItemFailure `json:"failures,omitempty"`
}

// UpdatePrices refreshes the current price and today's price-history row
// of every ticker held by the user, or by anyone when UserID is nil.
func (h *Handlers) UpdatePrices(ctx context.Context, args core.UpdatePricesArgs) (*UpdatePricesResult, error) {
	var res *UpdatePricesResult
	err := h.store.Session(ctx, func(tx *portfolio.Tx) error {
		tickers, err := tx.HeldTickers(args.UserID)
		if err != nil {
			return err
		}

		today := h.today()
		var out Outcome[string]
		for i, ticker := range tickers {
			if err := jobctx.Stopped(ctx); err != nil {
				return err
			}
			jobctx.ReportProgress(ctx, i, len(tickers), "Updating "+ticker)

			if err := h.updatePrice(ctx, tx, ticker, today); err != nil {
				h.logger.Warn("price update failed", "ticker", ticker, "error", err)
				out.Fail(ticker, err)
				continue
			}
			out.Ok(ticker)
		}
		jobctx.ReportProgress(ctx, len(tickers), len(tickers), "Committing")

		res = &UpdatePricesResult{
			UpdatedCount: len(out.Succeeded),
			FailedCount:  len(out.Failed),
			TotalTickers: len(tickers),
			Failures:     out.Failed,
		}
		return jobctx.Stopped(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handlers) updatePrice(ctx context.Context, tx *portfolio.Tx, ticker string, today time.Time) error {
	bar, err := h.market.Latest(ctx, ticker)
	if err != nil {
		return err
	}
	if bar.Close <= 0 {
		return fmt.Errorf("invalid close price %v for %s", bar.Close, ticker)
	}

	return tx.Item(func(tx *portfolio.Tx) error {
		asset, err := tx.AssetByTicker(ticker)
		if err != nil {
			return err
		}
		if err := tx.SetCurrentPrice(asset.ID, bar.Close); err != nil {
			return err
		}
		return tx.UpsertPriceHistory(&portfolio.PriceHistory{
			AssetID: asset.ID,
			Date:    today,
			Open:    bar.Open,
			High:    bar.High,
			Low:     bar.Low,
			Close:   bar.Close,
			Volume:  bar.Volume,
		})
	})
}
