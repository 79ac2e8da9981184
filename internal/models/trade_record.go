package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// TradeRecord is an immutable ledger fact about one executed trade. Rows are
// written by the exchange reconciliation tooling; the allocation engine only
// reads them.
type TradeRecord struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	OrderID string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Symbol  string `gorm:"type:varchar(30);not null;index"`
	Side    string `gorm:"type:varchar(4);not null;index"`

	Size         decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Price        decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	TotalFeesUSD decimal.Decimal `gorm:"column:total_fees_usd;type:numeric(30,10);not null;default:0"`

	OrderTime time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}
