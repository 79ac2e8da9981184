package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SymbolPrecision backs the table-driven precision provider: the smallest
// economically significant quantity per symbol and the number of decimals USD
// amounts are rounded to.
type SymbolPrecision struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Symbol string `gorm:"type:varchar(30);not null;uniqueIndex"`

	DustThreshold    decimal.Decimal `gorm:"type:numeric(30,18);not null"`
	RoundingDecimals int32           `gorm:"not null;default:8"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SymbolPrecision) TableName() string {
	return "symbol_precisions"
}
