package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fifopnl/internal/models"
)

// Repository is the storage boundary for the allocation engine, the
// validator, and the operator API. Methods with a Tx suffix run against the
// caller's transaction handle obtained from InTx; everything else runs on
// its own connection and reads committed state.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Ledger (read-only).
	ListBuysTx(tx *gorm.DB, symbol string) ([]models.TradeRecord, error)
	ListSellsTx(tx *gorm.DB, symbol string) ([]models.TradeRecord, error)
	ListSymbolsTx(tx *gorm.DB) ([]string, error)
	CountTradesBySide(ctx context.Context, symbol string) (buys int64, sells int64, err error)

	// Precision.
	GetSymbolPrecision(ctx context.Context, symbol string) (*models.SymbolPrecision, error)

	// Allocations.
	AcquireVersionLockTx(tx *gorm.DB, version int) error
	DeleteAllocationsByVersionTx(tx *gorm.DB, version int) (int64, error)
	DeleteAllocationsBySymbolTx(tx *gorm.DB, version int, symbol string) (int64, error)
	InsertAllocationsTx(tx *gorm.DB, items []models.FifoAllocation, batchSize int) error
	SumPnLByVersionTx(tx *gorm.DB, version int) (decimal.Decimal, error)
	SumPnLByVersion(ctx context.Context, version int) (decimal.Decimal, error)
	CountAllocationsByVersion(ctx context.Context, version int) (int64, error)
	ListAllocations(ctx context.Context, params ListAllocationsParams) ([]models.FifoAllocation, error)

	// Computation log.
	InsertComputationLog(ctx context.Context, item *models.ComputationLog) error
	UpdateComputationLog(ctx context.Context, item *models.ComputationLog) error
	UpdateComputationLogTx(tx *gorm.DB, item *models.ComputationLog) error
	ListComputationLogs(ctx context.Context, limit int) ([]models.ComputationLog, error)

	// Manual review queue.
	UpsertManualReviewItemTx(tx *gorm.DB, item *models.ManualReviewItem) error
	ListManualReviewItems(ctx context.Context, params ListReviewParams) ([]models.ManualReviewItem, error)
	UpdateManualReviewStatus(ctx context.Context, id uint64, status string) error
	CountPendingReviewItems(ctx context.Context) (int64, error)

	// Validator reads.
	ListSellAllocationTotals(ctx context.Context, version int) ([]SellAllocationTotal, error)
	ListBuyAllocationTotals(ctx context.Context, version int) ([]BuyAllocationTotal, error)
	ListDuplicateAllocationGroups(ctx context.Context, version int) ([]DuplicateGroup, error)
	ListTemporalViolations(ctx context.Context, version int) ([]models.FifoAllocation, error)
	CountUnmatchedAllocations(ctx context.Context, version int) (int64, error)

	// Health report reads.
	ListSymbolAllocationStats(ctx context.Context, version int) ([]SymbolAllocationStat, error)
}

type ListAllocationsParams struct {
	Version       int
	Symbol        *string
	UnmatchedOnly bool
	Limit         int
	Offset        int
}

type ListReviewParams struct {
	Status *string
	Symbol *string
	Limit  int
	Offset int
}

// SellAllocationTotal joins one sell against the sum of its allocations in a
// version. Sells with no allocation rows appear with a zero total.
type SellAllocationTotal struct {
	SellOrderID     string
	Symbol          string
	SellSize        decimal.Decimal
	AllocatedTotal  decimal.Decimal
	AllocationCount int64
}

// BuyAllocationTotal joins one buy against the total size allocated from it.
type BuyAllocationTotal struct {
	BuyOrderID     string
	Symbol         string
	BuySize        decimal.Decimal
	AllocatedTotal decimal.Decimal
}

type DuplicateGroup struct {
	SellOrderID string
	BuyOrderID  *string
	Count       int64
}

type SymbolAllocationStat struct {
	Symbol        string
	Allocations   int64
	Matched       int64
	Unmatched     int64
	AllocatedSize decimal.Decimal
	PnLUSD        decimal.Decimal
	LastSellTime  *time.Time
}
