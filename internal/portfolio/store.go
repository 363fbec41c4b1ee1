package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("portfolio: not found")

// Store opens per-job sessions on the portfolio database.
type Store struct {
	db *gorm.DB
}

// NewStore wraps db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the portfolio tables.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&User{}, &Asset{}, &Position{}, &PriceHistory{}, &PortfolioSnapshot{})
}

// Session runs fn in one transaction. It commits if fn returns nil and
// rolls back otherwise. A context cancelled before the commit also rolls
// back.
func (s *Store) Session(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// View runs fn without a transaction, for read-only work.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	return fn(&Tx{db: s.db.WithContext(ctx)})
}

// Tx is the repository bound to one session.
type Tx struct {
	db *gorm.DB
}

// Item runs fn under a savepoint so a failing item leaves the rest of the
// session intact.
func (t *Tx) Item(fn func(tx *Tx) error) error {
	return t.db.Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// HeldTickers returns the distinct tickers in active positions of one user,
// or of every user when userID is nil.
func (t *Tx) HeldTickers(userID *uint) ([]string, error) {
	q := t.db.Model(&Position{}).
		Joins("JOIN assets ON assets.id = positions.asset_id").
		Where("positions.is_active = ?", true)
	if userID != nil {
		q = q.Where("positions.user_id = ?", *userID)
	}

	var tickers []string
	if err := q.Distinct("assets.ticker").Order("assets.ticker").Pluck("assets.ticker", &tickers).Error; err != nil {
		return nil, fmt.Errorf("portfolio: held tickers: %w", err)
	}
	return tickers, nil
}

// AssetByTicker loads an asset.
func (t *Tx) AssetByTicker(ticker string) (*Asset, error) {
	var a Asset
	err := t.db.Where("ticker = ?", ticker).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: asset %s", ErrNotFound, ticker)
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetCurrentPrice updates an asset's current price.
func (t *Tx) SetCurrentPrice(assetID uint, price float64) error {
	res := t.db.Model(&Asset{}).Where("id = ?", assetID).Update("current_price", price)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: asset %d", ErrNotFound, assetID)
	}
	return nil
}

// UpsertPriceHistory writes the bar for (asset, date), replacing an
// existing row for the same day.
func (t *Tx) UpsertPriceHistory(row *PriceHistory) error {
	row.Date = Day(row.Date)
	return t.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).Create(row).Error
}

// PriceHistoryFor returns an asset's bars in date order.
func (t *Tx) PriceHistoryFor(assetID uint) ([]PriceHistory, error) {
	var rows []PriceHistory
	err := t.db.Where("asset_id = ?", assetID).Order("date").Find(&rows).Error
	return rows, err
}

// UpdateAsset saves descriptive fields of an existing asset.
func (t *Tx) UpdateAsset(a *Asset) error {
	return t.db.Model(a).Select("name", "asset_type", "sector", "industry", "exchange", "country", "market_cap", "current_price").Updates(a).Error
}

// User loads one user.
func (t *Tx) User(id uint) (*User, error) {
	var u User
	err := t.db.First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ActiveUsers returns every active user ordered by id.
func (t *Tx) ActiveUsers() ([]User, error) {
	var users []User
	err := t.db.Where("is_active = ?", true).Order("id").Find(&users).Error
	return users, err
}

// ActivePositions returns a user's active positions with their assets.
func (t *Tx) ActivePositions(userID uint) ([]Position, error) {
	var positions []Position
	err := t.db.Preload("Asset").
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("id").
		Find(&positions).Error
	return positions, err
}

// SnapshotExists reports whether the user already has a snapshot for day.
func (t *Tx) SnapshotExists(userID uint, day time.Time) (bool, error) {
	var n int64
	err := t.db.Model(&PortfolioSnapshot{}).
		Where("user_id = ? AND date = ?", userID, Day(day)).
		Count(&n).Error
	return n > 0, err
}

// CreateSnapshot inserts a snapshot. A second snapshot for the same user
// and day fails with gorm.ErrDuplicatedKey when the connection translates
// errors.
func (t *Tx) CreateSnapshot(s *PortfolioSnapshot) error {
	s.Date = Day(s.Date)
	return t.db.Create(s).Error
}

// Snapshots returns a user's snapshots on or after since, oldest first.
func (t *Tx) Snapshots(userID uint, since time.Time) ([]PortfolioSnapshot, error) {
	var rows []PortfolioSnapshot
	err := t.db.Where("user_id = ? AND date >= ?", userID, Day(since)).Order("date").Find(&rows).Error
	return rows, err
}

// Create inserts any portfolio model. Used for seeding.
func (t *Tx) Create(v any) error {
	return t.db.Create(v).Error
}
