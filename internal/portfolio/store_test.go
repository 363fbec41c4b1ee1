package portfolio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	s := NewStore(db)
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func seed(t *testing.T, s *Store, rows ...any) {
	t.Helper()
	require.NoError(t, s.Session(context.Background(), func(tx *Tx) error {
		for _, r := range rows {
			if err := tx.Create(r); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestHeldTickers(t *testing.T) {
	s := newTestStore(t)
	u1 := &User{Username: "ann", IsActive: true}
	u2 := &User{Username: "bob", IsActive: true}
	aapl := &Asset{Ticker: "AAPL"}
	msft := &Asset{Ticker: "MSFT"}
	tsla := &Asset{Ticker: "TSLA"}
	seed(t, s, u1, u2, aapl, msft, tsla)
	seed(t, s,
		&Position{UserID: u1.ID, AssetID: msft.ID, Quantity: 1, IsActive: true},
		&Position{UserID: u1.ID, AssetID: aapl.ID, Quantity: 1, IsActive: true},
		&Position{UserID: u2.ID, AssetID: aapl.ID, Quantity: 1, IsActive: true},
		&Position{UserID: u2.ID, AssetID: tsla.ID, Quantity: 1, IsActive: false},
	)

	err := s.View(context.Background(), func(tx *Tx) error {
		mine, err := tx.HeldTickers(&u1.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "MSFT"}, mine)

		theirs, err := tx.HeldTickers(&u2.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL"}, theirs)

		all, err := tx.HeldTickers(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"AAPL", "MSFT"}, all)
		return nil
	})
	require.NoError(t, err)
}

func TestUpsertPriceHistory_ReplacesSameDay(t *testing.T) {
	s := newTestStore(t)
	a := &Asset{Ticker: "AAPL"}
	seed(t, s, a)
	day := time.Date(2024, 6, 3, 15, 0, 0, 0, time.UTC)

	require.NoError(t, s.Session(context.Background(), func(tx *Tx) error {
		require.NoError(t, tx.UpsertPriceHistory(&PriceHistory{AssetID: a.ID, Date: day, Close: 170}))
		return tx.UpsertPriceHistory(&PriceHistory{AssetID: a.ID, Date: day.Add(2 * time.Hour), Close: 180})
	}))
	require.NoError(t, s.Session(context.Background(), func(tx *Tx) error {
		return tx.UpsertPriceHistory(&PriceHistory{AssetID: a.ID, Date: day.AddDate(0, 0, 1), Close: 181})
	}))

	require.NoError(t, s.View(context.Background(), func(tx *Tx) error {
		rows, err := tx.PriceHistoryFor(a.ID)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 180.0, rows[0].Close)
		assert.True(t, rows[0].Date.Equal(Day(day)))
		assert.Equal(t, 181.0, rows[1].Close)
		return nil
	}))
}

func TestItem_RollsBackOnlyThatItem(t *testing.T) {
	s := newTestStore(t)
	a := &Asset{Ticker: "AAPL"}
	b := &Asset{Ticker: "MSFT"}
	seed(t, s, a, b)

	require.NoError(t, s.Session(context.Background(), func(tx *Tx) error {
		require.NoError(t, tx.Item(func(tx *Tx) error { return tx.SetCurrentPrice(a.ID, 180) }))
		err := tx.Item(func(tx *Tx) error {
			if err := tx.SetCurrentPrice(b.ID, 410); err != nil {
				return err
			}
			return errors.New("item failed")
		})
		assert.Error(t, err)
		return nil
	}))

	require.NoError(t, s.View(context.Background(), func(tx *Tx) error {
		got, err := tx.AssetByTicker("AAPL")
		require.NoError(t, err)
		assert.Equal(t, 180.0, got.CurrentPrice)
		got, err = tx.AssetByTicker("MSFT")
		require.NoError(t, err)
		assert.Zero(t, got.CurrentPrice)
		return nil
	}))
}

func TestSession_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	a := &Asset{Ticker: "AAPL"}
	seed(t, s, a)

	err := s.Session(context.Background(), func(tx *Tx) error {
		require.NoError(t, tx.SetCurrentPrice(a.ID, 180))
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, s.View(context.Background(), func(tx *Tx) error {
		got, err := tx.AssetByTicker("AAPL")
		require.NoError(t, err)
		assert.Zero(t, got.CurrentPrice)
		return nil
	}))
}

func TestSnapshots_UniquePerUserAndDay(t *testing.T) {
	s := newTestStore(t)
	u := &User{Username: "ann", IsActive: true}
	seed(t, s, u)
	day := time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Session(context.Background(), func(tx *Tx) error {
		return tx.CreateSnapshot(&PortfolioSnapshot{UserID: u.ID, Date: day, TotalValue: 1})
	}))
	err := s.Session(context.Background(), func(tx *Tx) error {
		return tx.CreateSnapshot(&PortfolioSnapshot{UserID: u.ID, Date: day.Add(time.Hour), TotalValue: 2})
	})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	require.NoError(t, s.View(context.Background(), func(tx *Tx) error {
		exists, err := tx.SnapshotExists(u.ID, day)
		require.NoError(t, err)
		assert.True(t, exists)
		exists, err = tx.SnapshotExists(u.ID, day.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.False(t, exists)

		rows, err := tx.Snapshots(u.ID, day.AddDate(0, 0, -7))
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		return nil
	}))
}

func TestLookups_NotFound(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.View(context.Background(), func(tx *Tx) error {
		_, err := tx.AssetByTicker("NOPE")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = tx.User(42)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, tx.SetCurrentPrice(42, 1), ErrNotFound)
		return nil
	}))
}

func TestActivePositions_PreloadsAsset(t *testing.T) {
	s := newTestStore(t)
	u := &User{Username: "ann", IsActive: true}
	a := &Asset{Ticker: "AAPL", CurrentPrice: 100}
	seed(t, s, u, a)
	seed(t, s,
		&Position{UserID: u.ID, AssetID: a.ID, Quantity: 10, CostBasis: 900, IsActive: true},
		&Position{UserID: u.ID, AssetID: a.ID, Quantity: 5, CostBasis: 400, IsActive: false},
	)

	require.NoError(t, s.View(context.Background(), func(tx *Tx) error {
		ps, err := tx.ActivePositions(u.ID)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, "AAPL", ps[0].Asset.Ticker)
		assert.Equal(t, 1000.0, ps[0].CurrentValue())
		return nil
	}))
}
