package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 30 * time.Second

// Yahoo reads Yahoo Finance through go-yfinance.
type Yahoo struct {
	timeout time.Duration
	logger  *slog.Logger
}

// NewYahoo creates a Yahoo provider. A non-positive timeout uses DefaultTimeout.
func NewYahoo(timeout time.Duration, logger *slog.Logger) *Yahoo {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Yahoo{timeout: timeout, logger: logger}
}

var _ Provider = (*Yahoo)(nil)

// call runs fn with the provider timeout. go-yfinance does not take a
// context, so an expired call is abandoned rather than interrupted.
func call[T any](ctx context.Context, timeout time.Duration, fn func() (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn()
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (y *Yahoo) History(ctx context.Context, symbol, period string) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	bars, err := call(ctx, y.timeout, func() ([]models.Bar, error) {
		t, err := ticker.New(symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()
		return t.History(models.HistoryParams{
			Period:     period,
			Interval:   "1d",
			AutoAdjust: true,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("marketdata: history %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		out = append(out, Bar{
			Date:   b.Date,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		})
	}
	return out, nil
}

// Latest uses a five-day window so weekends and holidays still have a bar.
func (y *Yahoo) Latest(ctx context.Context, symbol string) (Bar, error) {
	bars, err := y.History(ctx, symbol, "5d")
	if err != nil {
		return Bar{}, err
	}
	last := bars[len(bars)-1]
	if last.Close <= 0 {
		return Bar{}, fmt.Errorf("%w: no close price for %s", ErrNoData, symbol)
	}
	return last, nil
}

func (y *Yahoo) AssetInfo(ctx context.Context, symbol string) (*AssetInfo, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	info, err := call(ctx, y.timeout, func() (*models.Info, error) {
		t, err := ticker.New(symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to create ticker: %w", err)
		}
		defer t.Close()
		return t.Info()
	})
	if err != nil {
		return nil, fmt.Errorf("marketdata: info %s: %w", symbol, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoData, symbol)
	}

	out := &AssetInfo{
		Ticker:       symbol,
		Name:         info.LongName,
		QuoteType:    info.QuoteType,
		Sector:       info.Sector,
		Industry:     info.Industry,
		Exchange:     info.Exchange,
		Country:      info.Country,
		MarketCap:    float64(info.MarketCap),
		CurrentPrice: info.CurrentPrice,
	}
	if out.Name == "" {
		out.Name = info.ShortName
	}
	if out.CurrentPrice <= 0 && info.RegularMarketPreviousClose > 0 {
		out.CurrentPrice = info.RegularMarketPreviousClose
	}
	y.logger.Debug("fetched asset info", "ticker", symbol, "quote_type", out.QuoteType)
	return out, nil
}
