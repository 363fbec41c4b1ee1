// Package tasks holds the portfolio job handlers and the schedule table
// that triggers them.
//
// Batch handlers iterate over independent items (tickers or users). A
// failing item is recorded in the job's Outcome and the batch continues;
// only an error outside the item loop fails the job. Handlers that write
// do so in one session, committed once at the end, and roll back instead
// if the job was revoked or timed out before the commit.
package tasks

import (
	"log/slog"
	"time"

	"github.com/jdziat/portfolio-jobs/internal/marketdata"
	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/registry"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Store  *portfolio.Store
	Market marketdata.Provider
	Logger *slog.Logger

	// Location decides which calendar day "today" is. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

// Handlers implements every job kind.
type Handlers struct {
	store    *portfolio.Store
	market   marketdata.Provider
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// New creates the handler set.
func New(deps Deps) *Handlers {
	h := &Handlers{
		store:    deps.Store,
		market:   deps.Market,
		logger:   deps.Logger,
		location: deps.Location,
		now:      deps.Now,
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.location == nil {
		h.location = time.UTC
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

// Registry binds every kind to its handler.
func (h *Handlers) Registry() (*registry.Registry, error) {
	return registry.New(
		registry.Handle(h.FetchMarketData),
		registry.Handle(h.FetchAssetInfo),
		registry.Handle(h.UpdatePrices),
		registry.Handle(h.CalculatePerformance),
		registry.Handle(h.CreateSnapshot),
	)
}

// today is the current calendar day in the handlers' location.
func (h *Handlers) today() time.Time {
	return portfolio.Day(h.now().In(h.location))
}
