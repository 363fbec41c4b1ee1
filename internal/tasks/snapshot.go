package tasks

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gonum.org/v1/gonum/floats"
	"gorm.io/gorm"

	"github.com/jdziat/portfolio-jobs/internal/portfolio"
	"github.com/jdziat/portfolio-jobs/pkg/core"
	"github.com/jdziat/portfolio-jobs/pkg/jobctx"
)

// SnapshotResult is the result of a snapshot run.
type SnapshotResult struct {
	SnapshotsCreated    int           `json:"snapshots_created"`
	TotalUsersProcessed int           `json:"total_users_processed"`
	SnapshotDate        string        `json:"snapshot_date"`
	SkippedUsers        []uint        `json:"skipped_users,omitempty"`
	Failures            []ItemFailure `json:"failures,omitempty"`
}

var errSnapshotExists = errors.New("snapshot already exists")

// CreateSnapshot writes today's snapshot for one user or for every active
// user. A user who already has today's snapshot is skipped.
func (h *Handlers) CreateSnapshot(ctx context.Context, args core.CreateSnapshotArgs) (*SnapshotResult, error) {
	today := h.today()
	res := &SnapshotResult{SnapshotDate: today.Format(time.DateOnly)}

	err := h.store.Session(ctx, func(tx *portfolio.Tx) error {
		users, err := h.snapshotTargets(tx, args.UserID)
		if err != nil {
			return err
		}

		var out Outcome[uint]
		for i, u := range users {
			if err := jobctx.Stopped(ctx); err != nil {
				return err
			}
			jobctx.ReportProgress(ctx, i, len(users), "Snapshot for user "+strconv.FormatUint(uint64(u.ID), 10))

			err := tx.Item(func(tx *portfolio.Tx) error {
				return createSnapshot(tx, u, today)
			})
			switch {
			case errors.Is(err, errSnapshotExists), errors.Is(err, gorm.ErrDuplicatedKey):
				res.SkippedUsers = append(res.SkippedUsers, u.ID)
			case err != nil:
				h.logger.Warn("snapshot failed", "user_id", u.ID, "error", err)
				out.Fail(strconv.FormatUint(uint64(u.ID), 10), err)
			default:
				out.Ok(u.ID)
			}
		}
		jobctx.ReportProgress(ctx, len(users), len(users), "Committing")

		res.SnapshotsCreated = len(out.Succeeded)
		res.TotalUsersProcessed = len(users)
		res.Failures = out.Failed
		return jobctx.Stopped(ctx)
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (h *Handlers) snapshotTargets(tx *portfolio.Tx, userID *uint) ([]portfolio.User, error) {
	if userID == nil {
		return tx.ActiveUsers()
	}
	u, err := tx.User(*userID)
	if err != nil {
		return nil, err
	}
	return []portfolio.User{*u}, nil
}

func createSnapshot(tx *portfolio.Tx, u portfolio.User, day time.Time) error {
	exists, err := tx.SnapshotExists(u.ID, day)
	if err != nil {
		return err
	}
	if exists {
		return errSnapshotExists
	}

	positions, err := tx.ActivePositions(u.ID)
	if err != nil {
		return err
	}
	values := make([]float64, len(positions))
	costs := make([]float64, len(positions))
	for i, p := range positions {
		values[i] = p.CurrentValue()
		costs[i] = p.CostBasis
	}

	positionsValue := floats.Sum(values)
	costBasis := floats.Sum(costs)
	total := positionsValue + u.CashBalance

	return tx.CreateSnapshot(&portfolio.PortfolioSnapshot{
		UserID:         u.ID,
		Date:           day,
		PositionsValue: positionsValue,
		CashBalance:    u.CashBalance,
		TotalValue:     total,
		TotalCostBasis: costBasis,
		TotalGainLoss:  total - costBasis,
	})
}
