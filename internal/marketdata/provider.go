// Package marketdata fetches price series and descriptive data for tickers
// from an external provider.
package marketdata

import (
	"context"
	"errors"
	"time"
)

// ErrNoData is returned when the provider answers with an empty series or
// without a usable price.
var ErrNoData = errors.New("marketdata: no data")

// Bar is one daily OHLCV bar.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// AssetInfo is descriptive data for one ticker.
type AssetInfo struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	QuoteType    string  `json:"quote_type"`
	Sector       string  `json:"sector,omitempty"`
	Industry     string  `json:"industry,omitempty"`
	Exchange     string  `json:"exchange,omitempty"`
	Country      string  `json:"country,omitempty"`
	MarketCap    float64 `json:"market_cap,omitempty"`
	CurrentPrice float64 `json:"current_price,omitempty"`
}

// Provider is the market-data source used by the job handlers.
type Provider interface {
	// History returns daily bars for period ("1mo", "1y", ...).
	History(ctx context.Context, symbol, period string) ([]Bar, error)
	// Latest returns the most recent daily bar.
	Latest(ctx context.Context, symbol string) (Bar, error)
	AssetInfo(ctx context.Context, symbol string) (*AssetInfo, error)
}
