package core

import "sort"

// Kind identifies a job type. The set of kinds is closed: every Kind has
// exactly one Args type and the registry refuses to start without a
// handler for each of them.
type Kind string

const (
	KindFetchMarketData      Kind = "market.fetch"
	KindFetchAssetInfo       Kind = "market.asset_info"
	KindUpdatePrices         Kind = "portfolio.update_prices"
	KindCalculatePerformance Kind = "portfolio.calculate_performance"
	KindCreateSnapshot       Kind = "portfolio.create_snapshot"
)

var allKinds = []Kind{
	KindFetchMarketData,
	KindFetchAssetInfo,
	KindUpdatePrices,
	KindCalculatePerformance,
	KindCreateSnapshot,
}

// Kinds returns every defined kind in a stable order.
func Kinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind resolves a job name. Unknown names return *UnknownJobError.
func ParseKind(name string) (Kind, error) {
	for _, k := range allKinds {
		if string(k) == name {
			return k, nil
		}
	}
	return "", &UnknownJobError{Name: name}
}

// NewArgs returns a zero value of the Args type that belongs to k.
func NewArgs(k Kind) (Args, error) {
	switch k {
	case KindFetchMarketData:
		return &FetchMarketDataArgs{}, nil
	case KindFetchAssetInfo:
		return &FetchAssetInfoArgs{}, nil
	case KindUpdatePrices:
		return &UpdatePricesArgs{}, nil
	case KindCalculatePerformance:
		return &CalculatePerformanceArgs{}, nil
	case KindCreateSnapshot:
		return &CreateSnapshotArgs{}, nil
	default:
		return nil, &UnknownJobError{Name: string(k)}
	}
}

// Args is the argument payload of a job. The interface is sealed: only
// the argument types in this package implement it.
type Args interface {
	Kind() Kind
	args()
}

// FetchMarketDataArgs refreshes price series for a list of symbols.
type FetchMarketDataArgs struct {
	Symbols []string `json:"symbols"`
	Period  string   `json:"period"`
}

// FetchAssetInfoArgs looks up descriptive data for one ticker.
type FetchAssetInfoArgs struct {
	Ticker string `json:"ticker"`
}

// UpdatePricesArgs refreshes current prices for the tickers held by one
// user, or by every user when UserID is nil.
type UpdatePricesArgs struct {
	UserID *uint `json:"user_id,omitempty"`
}

// CalculatePerformanceArgs computes performance metrics for one user.
type CalculatePerformanceArgs struct {
	UserID   uint `json:"user_id"`
	DaysBack int  `json:"days_back"`
}

// CreateSnapshotArgs creates today's snapshot for one user, or for every
// active user when UserID is nil.
type CreateSnapshotArgs struct {
	UserID *uint `json:"user_id,omitempty"`
}

func (FetchMarketDataArgs) Kind() Kind      { return KindFetchMarketData }
func (FetchAssetInfoArgs) Kind() Kind       { return KindFetchAssetInfo }
func (UpdatePricesArgs) Kind() Kind         { return KindUpdatePrices }
func (CalculatePerformanceArgs) Kind() Kind { return KindCalculatePerformance }
func (CreateSnapshotArgs) Kind() Kind       { return KindCreateSnapshot }

func (FetchMarketDataArgs) args()      {}
func (FetchAssetInfoArgs) args()       {}
func (UpdatePricesArgs) args()         {}
func (CalculatePerformanceArgs) args() {}
func (CreateSnapshotArgs) args()       {}
