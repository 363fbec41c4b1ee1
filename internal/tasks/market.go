package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdziat/portfolio-jobs/internal/marketdata"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
)

// DefaultPeriod is used when a market-data refresh names no period.
const DefaultPeriod = "1mo"

// MarketDataResult is the result of a market-data refresh.
type MarketDataResult struct {
	Results        map[string][]marketdata.Bar `json:"results"`
	FailedSymbols  []string                    `json:"failed_symbols"`
	Failures       []ItemFailure               `json:"failures"`
	TotalProcessed int                         `json:"total_processed"`
	TotalFailed    int                         `json:"total_failed"`
}

type symbolSeries struct {
	symbol string
	bars   []marketdata.Bar
}

// FetchMarketData fetches a price series per symbol. Symbols the provider
// has no data for are reported as failed.
func (h *Handlers) FetchMarketData(ctx context.Context, args core.FetchMarketDataArgs) (*MarketDataResult, error) {
	period := args.Period
	if period == "" {
		period = DefaultPeriod
	}

	var out Outcome[symbolSeries]
	for i, symbol := range args.Symbols {
		if err := jobctx.Stopped(ctx); err != nil {
			return nil, err
		}
		jobctx.ReportProgress(ctx, i, len(args.Symbols), "Fetching "+symbol)

		bars, err := h.fetchSeries(ctx, symbol, period)
		if err != nil {
			h.logger.Warn("market data fetch failed", "symbol", symbol, "error", err)
			out.Fail(symbol, err)
			continue
		}
		out.Ok(symbolSeries{symbol: symbol, bars: bars})
	}
	jobctx.ReportProgress(ctx, len(args.Symbols), len(args.Symbols), "Done")

	res := &MarketDataResult{
		Results:       make(map[string][]marketdata.Bar, len(out.Succeeded)),
		FailedSymbols: out.FailedIDs(),
		Failures:      out.Failed,
	}
	for _, s := range out.Succeeded {
		res.Results[s.symbol] = s.bars
	}
	res.TotalProcessed = len(res.Results)
	res.TotalFailed = len(res.FailedSymbols)
	return res, nil
}

func (h *Handlers) fetchSeries(ctx context.Context, symbol, period string) ([]marketdata.Bar, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, fmt.Errorf("%w: empty symbol", marketdata.ErrNoData)
	}
	bars, err := h.market.History(ctx, symbol, period)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", marketdata.ErrNoData, symbol)
	}
	return bars, nil
}
