package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FifoAllocation records how much of one sell was satisfied by one buy.
// BuyOrderID is nil only for the unmatched-remainder row of a sell, in which
// case every buy-side field (BuyPrice, CostBasisUSD, PnLUSD, BuyTime) is nil
// as well.
type FifoAllocation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	AllocationVersion int     `gorm:"not null;index;uniqueIndex:uq_alloc_identity"`
	SellOrderID       string  `gorm:"type:varchar(100);not null;index;uniqueIndex:uq_alloc_identity"`
	BuyOrderID        *string `gorm:"type:varchar(100);index;uniqueIndex:uq_alloc_identity"`
	Symbol            string  `gorm:"type:varchar(30);not null;index"`

	AllocatedSize   decimal.Decimal  `gorm:"type:numeric(30,10);not null"`
	BuyPrice        *decimal.Decimal `gorm:"type:numeric(20,10)"`
	SellPrice       decimal.Decimal  `gorm:"type:numeric(20,10);not null"`
	BuyFeesPerUnit  decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	SellFeesPerUnit decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`

	// Explicit column names because default GORM naming turns "USD" and "PnL"
	// into "us_d" / "pn_l".
	CostBasisUSD   *decimal.Decimal `gorm:"column:cost_basis_usd;type:numeric(30,10)"`
	ProceedsUSD    decimal.Decimal  `gorm:"column:proceeds_usd;type:numeric(30,10);not null"`
	NetProceedsUSD decimal.Decimal  `gorm:"column:net_proceeds_usd;type:numeric(30,10);not null"`
	PnLUSD         *decimal.Decimal `gorm:"column:pnl_usd;type:numeric(30,10)"`

	BuyTime  *time.Time `gorm:"type:timestamptz"`
	SellTime time.Time  `gorm:"type:timestamptz;not null"`

	AllocationBatchID string  `gorm:"type:uuid;not null;index"`
	Notes             *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (FifoAllocation) TableName() string {
	return "fifo_allocations"
}

// Matched reports whether this allocation row was satisfied by a buy.
func (a *FifoAllocation) Matched() bool {
	return a != nil && a.BuyOrderID != nil
}
