package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	ComputationStatusRunning   = "running"
	ComputationStatusCompleted = "completed"
	ComputationStatusFailed    = "failed"

	ComputationModeFull         = "full"
	ComputationModeSingleSymbol = "single-symbol"
)

// ComputationLog is the append-only audit trail of engine runs. A row is
// inserted with status=running before the compute transaction opens and
// updated once with the outcome. A row stuck in status=running belongs to a
// run that died mid-transaction.
type ComputationLog struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Symbol            *string `gorm:"type:varchar(30);index"`
	AllocationVersion int     `gorm:"not null;index"`
	BatchID           string  `gorm:"type:uuid;not null;index"`
	Mode              string  `gorm:"type:varchar(20);not null"`
	Status            string  `gorm:"type:varchar(20);not null;index"`
	TriggeredBy       string  `gorm:"type:varchar(50)"`

	StartedAt   time.Time  `gorm:"type:timestamptz;not null"`
	CompletedAt *time.Time `gorm:"type:timestamptz"`
	DurationMs  *int64

	BuysProcessed      int `gorm:"not null;default:0"`
	SellsProcessed     int `gorm:"not null;default:0"`
	AllocationsCreated int `gorm:"not null;default:0"`

	Symbols      datatypes.JSON   `gorm:"type:jsonb"`
	TotalPnLUSD  *decimal.Decimal `gorm:"column:total_pnl_usd;type:numeric(30,10)"`
	ErrorMessage *string          `gorm:"type:text"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (ComputationLog) TableName() string {
	return "computation_logs"
}
