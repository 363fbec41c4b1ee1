// Package portfolio is the relational store the job handlers read and
// write: users, assets, positions, daily price history and daily portfolio
// snapshots.
package portfolio

import "time"

// User owns positions and a cash balance.
type User struct {
	ID          uint   `gorm:"primaryKey"`
	Username    string `gorm:"uniqueIndex;size:100;not null"`
	CashBalance float64
	IsActive    bool `gorm:"index"`
	CreatedAt   time.Time
}

// Asset is a tradable instrument.
type Asset struct {
	ID           uint   `gorm:"primaryKey"`
	Ticker       string `gorm:"uniqueIndex;size:20;not null"`
	Name         string `gorm:"size:255"`
	AssetType    string `gorm:"size:50;index"`
	Sector       string `gorm:"size:100;index"`
	Industry     string `gorm:"size:100"`
	Exchange     string `gorm:"size:50"`
	Country      string `gorm:"size:100"`
	MarketCap    float64
	CurrentPrice float64
	UpdatedAt    time.Time
}

// Position is a user's holding of one asset. CostBasis is the total paid.
type Position struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"index;not null"`
	AssetID   uint `gorm:"index;not null"`
	Asset     Asset
	Quantity  float64
	CostBasis float64
	IsActive  bool `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentValue is quantity times the asset's current price.
func (p Position) CurrentValue() float64 {
	return p.Quantity * p.Asset.CurrentPrice
}

// PriceHistory is one daily bar for an asset.
type PriceHistory struct {
	ID      uint      `gorm:"primaryKey"`
	AssetID uint      `gorm:"uniqueIndex:idx_price_asset_date;not null"`
	Date    time.Time `gorm:"uniqueIndex:idx_price_asset_date;not null"`
	Open    float64
	High    float64
	Low     float64
	Close   float64
	Volume  int64
}

// PortfolioSnapshot is a once-per-user-per-day summary.
type PortfolioSnapshot struct {
	ID             uint      `gorm:"primaryKey"`
	UserID         uint      `gorm:"uniqueIndex:idx_snapshot_user_date;not null"`
	Date           time.Time `gorm:"uniqueIndex:idx_snapshot_user_date;not null"`
	PositionsValue float64
	CashBalance    float64
	TotalValue     float64
	TotalCostBasis float64
	TotalGainLoss  float64
	CreatedAt      time.Time
}

// Day returns the calendar date of t as midnight UTC, the form dates are
// stored in.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
