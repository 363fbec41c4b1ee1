package tasks

import (
	"context"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
)

// DefaultDaysBack is the trend window when none is given.
const DefaultDaysBack = 30

// PositionPerformance is one position's share of the portfolio.
type PositionPerformance struct {
	Ticker       string  `json:"ticker"`
	AssetType    string  `json:"asset_type"`
	Sector       string  `json:"sector"`
	Quantity     float64 `json:"quantity"`
	CurrentValue float64 `json:"current_value"`
	CostBasis    float64 `json:"cost_basis"`
	GainLoss     float64 `json:"gain_loss"`
	GainLossPct  float64 `json:"gain_loss_pct"`
	Weight       float64 `json:"weight"`
}

// TrendPoint is one snapshot in the trend window.
type TrendPoint struct {
	Date          string  `json:"date"`
	TotalValue    float64 `json:"total_value"`
	TotalGainLoss float64 `json:"total_gain_loss"`
}

// PerformanceResult is the result of a performance calculation.
type PerformanceResult struct {
	UserID             uint                  `json:"user_id"`
	TotalValue         float64               `json:"total_value"`
	TotalCostBasis     float64               `json:"total_cost_basis"`
	TotalGainLoss      float64               `json:"total_gain_loss"`
	TotalGainLossPct   float64               `json:"total_gain_loss_pct"`
	Positions          []PositionPerformance `json:"positions"`
	AllocationByType   map[string]float64    `json:"allocation_by_type"`
	AllocationBySector map[string]float64    `json:"allocation_by_sector"`
	Trend              []TrendPoint          `json:"trend"`
	TrendAverageValue  float64               `json:"trend_average_value"`
	DaysBack           int                   `json:"days_back"`
}

// CalculatePerformance aggregates a user's positions and snapshot history.
// It only reads.
func (h *Handlers) CalculatePerformance(ctx context.Context, args core.CalculatePerformanceArgs) (*PerformanceResult, error) {
	daysBack := args.DaysBack
	if daysBack <= 0 {
		daysBack = DefaultDaysBack
	}

	var (
		positions []portfolio.Position
		snapshots []portfolio.PortfolioSnapshot
	)
	err := h.store.View(ctx, func(tx *portfolio.Tx) error {
		if _, err := tx.User(args.UserID); err != nil {
			return err
		}
		var err error
		if positions, err = tx.ActivePositions(args.UserID); err != nil {
			return err
		}
		snapshots, err = tx.Snapshots(args.UserID, h.today().AddDate(0, 0, -daysBack))
		return err
	})
	if err != nil {
		return nil, err
	}
	jobctx.ReportProgress(ctx, 1, 2, "Aggregating")

	res := aggregatePerformance(positions)
	res.UserID = args.UserID
	res.DaysBack = daysBack
	res.Trend, res.TrendAverageValue = trend(snapshots)

	jobctx.ReportProgress(ctx, 2, 2, "Done")
	return res, nil
}

// percentOf returns part/whole*100, or zero when whole is zero.
func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func aggregatePerformance(positions []portfolio.Position) *PerformanceResult {
	values := make([]float64, len(positions))
	costs := make([]float64, len(positions))
	for i, p := range positions {
		values[i] = p.CurrentValue()
		costs[i] = p.CostBasis
	}

	res := &PerformanceResult{
		TotalValue:         floats.Sum(values),
		TotalCostBasis:     floats.Sum(costs),
		Positions:          make([]PositionPerformance, 0, len(positions)),
		AllocationByType:   make(map[string]float64),
		AllocationBySector: make(map[string]float64),
	}
	res.TotalGainLoss = res.TotalValue - res.TotalCostBasis
	res.TotalGainLossPct = percentOf(res.TotalGainLoss, res.TotalCostBasis)

	weights := make([]float64, len(values))
	if res.TotalValue != 0 {
		floats.ScaleTo(weights, 100/res.TotalValue, values)
	}

	for i, p := range positions {
		gain := values[i] - costs[i]
		res.Positions = append(res.Positions, PositionPerformance{
			Ticker:       p.Asset.Ticker,
			AssetType:    orUnknown(p.Asset.AssetType),
			Sector:       orUnknown(p.Asset.Sector),
			Quantity:     p.Quantity,
			CurrentValue: values[i],
			CostBasis:    costs[i],
			GainLoss:     gain,
			GainLossPct:  percentOf(gain, costs[i]),
			Weight:       weights[i],
		})
		res.AllocationByType[orUnknown(p.Asset.AssetType)] += weights[i]
		res.AllocationBySector[orUnknown(p.Asset.Sector)] += weights[i]
	}
	return res
}

func trend(snapshots []portfolio.PortfolioSnapshot) ([]TrendPoint, float64) {
	points := make([]TrendPoint, 0, len(snapshots))
	values := make([]float64, 0, len(snapshots))
	for _, s := range snapshots {
		points = append(points, TrendPoint{
			Date:          s.Date.Format(time.DateOnly),
			TotalValue:    s.TotalValue,
			TotalGainLoss: s.TotalGainLoss,
		})
		values = append(values, s.TotalValue)
	}
	if len(values) == 0 {
		return points, 0
	}
	return points, stat.Mean(values, nil)
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
