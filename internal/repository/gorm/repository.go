package gormrepository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fifopnl/internal/models"
	"fifopnl/internal/repository"
)

// lockClassAllocations namespaces the advisory lock so the version integer
// cannot collide with other advisory-lock users of the same database.
const lockClassAllocations = 0x71F0

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- Ledger -----------------------------------------------------------------

func (s *Store) ListBuysTx(tx *gorm.DB, symbol string) ([]models.TradeRecord, error) {
	return listTradesTx(tx, symbol, models.SideBuy)
}

func (s *Store) ListSellsTx(tx *gorm.DB, symbol string) ([]models.TradeRecord, error) {
	return listTradesTx(tx, symbol, models.SideSell)
}

func listTradesTx(tx *gorm.DB, symbol, side string) ([]models.TradeRecord, error) {
	if tx == nil {
		return nil, nil
	}
	var items []models.TradeRecord
	err := tx.Model(&models.TradeRecord{}).
		Where("symbol = ?", symbol).
		Where("side = ?", side).
		Order("order_time asc, order_id asc").
		Find(&items).Error
	return items, err
}

func (s *Store) ListSymbolsTx(tx *gorm.DB) ([]string, error) {
	if tx == nil {
		return nil, nil
	}
	var symbols []string
	err := tx.Model(&models.TradeRecord{}).
		Distinct("symbol").
		Order("symbol asc").
		Pluck("symbol", &symbols).Error
	return symbols, err
}

func (s *Store) CountTradesBySide(ctx context.Context, symbol string) (int64, int64, error) {
	if s == nil || s.db == nil {
		return 0, 0, nil
	}
	type row struct {
		Side  string
		Count int64
	}
	query := s.db.WithContext(ctx).
		Model(&models.TradeRecord{}).
		Select("side, COUNT(*) AS count").
		Group("side")
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}
	var rows []row
	if err := query.Scan(&rows).Error; err != nil {
		return 0, 0, err
	}
	var buys, sells int64
	for _, r := range rows {
		switch r.Side {
		case models.SideBuy:
			buys = r.Count
		case models.SideSell:
			sells = r.Count
		}
	}
	return buys, sells, nil
}

// --- Precision --------------------------------------------------------------

func (s *Store) GetSymbolPrecision(ctx context.Context, symbol string) (*models.SymbolPrecision, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SymbolPrecision
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

// --- Allocations ------------------------------------------------------------

func (s *Store) AcquireVersionLockTx(tx *gorm.DB, version int) error {
	if tx == nil {
		return nil
	}
	// Transaction-scoped: released automatically at commit or rollback.
	return tx.Exec("SELECT pg_advisory_xact_lock(?, ?)", lockClassAllocations, version).Error
}

func (s *Store) DeleteAllocationsByVersionTx(tx *gorm.DB, version int) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	res := tx.Where("allocation_version = ?", version).Delete(&models.FifoAllocation{})
	return res.RowsAffected, res.Error
}

func (s *Store) DeleteAllocationsBySymbolTx(tx *gorm.DB, version int, symbol string) (int64, error) {
	if tx == nil {
		return 0, nil
	}
	res := tx.Where("allocation_version = ?", version).
		Where("symbol = ?", symbol).
		Delete(&models.FifoAllocation{})
	return res.RowsAffected, res.Error
}

func (s *Store) InsertAllocationsTx(tx *gorm.DB, items []models.FifoAllocation, batchSize int) error {
	if tx == nil || len(items) == 0 {
		return nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}
	return tx.CreateInBatches(items, batchSize).Error
}

func (s *Store) SumPnLByVersionTx(tx *gorm.DB, version int) (decimal.Decimal, error) {
	if tx == nil {
		return decimal.Zero, nil
	}
	return sumPnL(tx, version)
}

func (s *Store) SumPnLByVersion(ctx context.Context, version int) (decimal.Decimal, error) {
	if s == nil || s.db == nil {
		return decimal.Zero, nil
	}
	return sumPnL(s.db.WithContext(ctx), version)
}

func sumPnL(db *gorm.DB, version int) (decimal.Decimal, error) {
	type row struct {
		Total decimal.Decimal
	}
	var r row
	err := db.Model(&models.FifoAllocation{}).
		Select("COALESCE(SUM(pnl_usd), 0) AS total").
		Where("allocation_version = ?", version).
		Where("pnl_usd IS NOT NULL").
		Scan(&r).Error
	return r.Total, err
}

func (s *Store) CountAllocationsByVersion(ctx context.Context, version int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.FifoAllocation{}).
		Where("allocation_version = ?", version).
		Count(&count).Error
	return count, err
}

func (s *Store) ListAllocations(ctx context.Context, params repository.ListAllocationsParams) ([]models.FifoAllocation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).
		Model(&models.FifoAllocation{}).
		Where("allocation_version = ?", params.Version)
	if params.Symbol != nil && *params.Symbol != "" {
		query = query.Where("symbol = ?", *params.Symbol)
	}
	if params.UnmatchedOnly {
		query = query.Where("buy_order_id IS NULL")
	}
	limit := normalizeLimit(params.Limit, 500)
	offset := normalizeOffset(params.Offset)
	var items []models.FifoAllocation
	err := query.Order("symbol asc, sell_time asc, id asc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	return items, err
}

// --- Computation log --------------------------------------------------------

func (s *Store) InsertComputationLog(ctx context.Context, item *models.ComputationLog) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) UpdateComputationLog(ctx context.Context, item *models.ComputationLog) error {
	if s == nil || s.db == nil || item == nil || item.ID == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Save(item).Error
}

func (s *Store) UpdateComputationLogTx(tx *gorm.DB, item *models.ComputationLog) error {
	if tx == nil || item == nil || item.ID == 0 {
		return nil
	}
	return tx.Save(item).Error
}

func (s *Store) ListComputationLogs(ctx context.Context, limit int) ([]models.ComputationLog, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.ComputationLog
	err := s.db.WithContext(ctx).
		Model(&models.ComputationLog{}).
		Order("started_at desc, id desc").
		Limit(normalizeLimit(limit, 100)).
		Find(&items).Error
	return items, err
}

// --- Manual review queue ----------------------------------------------------

func (s *Store) UpsertManualReviewItemTx(tx *gorm.DB, item *models.ManualReviewItem) error {
	if tx == nil || item == nil {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}, {Name: "issue_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"symbol",
			"severity",
			"description",
			"updated_at",
		}),
	}).Create(item).Error
}

func (s *Store) ListManualReviewItems(ctx context.Context, params repository.ListReviewParams) ([]models.ManualReviewItem, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	query := s.db.WithContext(ctx).Model(&models.ManualReviewItem{})
	if params.Status != nil && *params.Status != "" {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Symbol != nil && *params.Symbol != "" {
		query = query.Where("symbol = ?", *params.Symbol)
	}
	var items []models.ManualReviewItem
	err := query.Order("updated_at desc, id desc").
		Limit(normalizeLimit(params.Limit, 200)).
		Offset(normalizeOffset(params.Offset)).
		Find(&items).Error
	return items, err
}

func (s *Store) UpdateManualReviewStatus(ctx context.Context, id uint64, status string) error {
	if s == nil || s.db == nil || id == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&models.ManualReviewItem{}).
		Where("id = ?", id).
		Update("status", status).Error
}

func (s *Store) CountPendingReviewItems(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.ManualReviewItem{}).
		Where("status = ?", models.ReviewStatusPending).
		Count(&count).Error
	return count, err
}

// --- Validator reads --------------------------------------------------------

// ListSellAllocationTotals returns every sell in the ledger joined with the
// sum of its allocations in the version. The threshold comparison happens in
// the validator against the symbol's dust threshold; no tolerance literal
// lives in SQL.
func (s *Store) ListSellAllocationTotals(ctx context.Context, version int) ([]repository.SellAllocationTotal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.SellAllocationTotal
	err := s.db.WithContext(ctx).
		Table("trade_records AS t").
		Select(`
			t.order_id AS sell_order_id,
			t.symbol AS symbol,
			t.size AS sell_size,
			COALESCE(SUM(a.allocated_size), 0) AS allocated_total,
			COUNT(a.id) AS allocation_count`).
		Joins("LEFT JOIN fifo_allocations AS a ON a.sell_order_id = t.order_id AND a.allocation_version = ?", version).
		Where("t.side = ?", models.SideSell).
		Group("t.order_id, t.symbol, t.size").
		Order("t.symbol asc, t.order_id asc").
		Scan(&rows).Error
	return rows, err
}

func (s *Store) ListBuyAllocationTotals(ctx context.Context, version int) ([]repository.BuyAllocationTotal, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.BuyAllocationTotal
	err := s.db.WithContext(ctx).
		Table("trade_records AS t").
		Select(`
			t.order_id AS buy_order_id,
			t.symbol AS symbol,
			t.size AS buy_size,
			COALESCE(SUM(a.allocated_size), 0) AS allocated_total`).
		Joins("LEFT JOIN fifo_allocations AS a ON a.buy_order_id = t.order_id AND a.allocation_version = ?", version).
		Where("t.side = ?", models.SideBuy).
		Group("t.order_id, t.symbol, t.size").
		Order("t.symbol asc, t.order_id asc").
		Scan(&rows).Error
	return rows, err
}

func (s *Store) ListDuplicateAllocationGroups(ctx context.Context, version int) ([]repository.DuplicateGroup, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.DuplicateGroup
	err := s.db.WithContext(ctx).
		Model(&models.FifoAllocation{}).
		Select("sell_order_id, buy_order_id, COUNT(*) AS count").
		Where("allocation_version = ?", version).
		Group("sell_order_id, buy_order_id").
		Having("COUNT(*) > 1").
		Scan(&rows).Error
	return rows, err
}

func (s *Store) ListTemporalViolations(ctx context.Context, version int) ([]models.FifoAllocation, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.FifoAllocation
	err := s.db.WithContext(ctx).
		Model(&models.FifoAllocation{}).
		Where("allocation_version = ?", version).
		Where("buy_time IS NOT NULL").
		Where("buy_time > sell_time").
		Order("symbol asc, sell_time asc").
		Find(&items).Error
	return items, err
}

func (s *Store) CountUnmatchedAllocations(ctx context.Context, version int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, nil
	}
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.FifoAllocation{}).
		Where("allocation_version = ?", version).
		Where("buy_order_id IS NULL").
		Count(&count).Error
	return count, err
}

// --- Health report reads ----------------------------------------------------

func (s *Store) ListSymbolAllocationStats(ctx context.Context, version int) ([]repository.SymbolAllocationStat, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var rows []repository.SymbolAllocationStat
	err := s.db.WithContext(ctx).
		Model(&models.FifoAllocation{}).
		Select(`
			symbol,
			COUNT(*) AS allocations,
			COUNT(buy_order_id) AS matched,
			COUNT(*) - COUNT(buy_order_id) AS unmatched,
			COALESCE(SUM(allocated_size), 0) AS allocated_size,
			COALESCE(SUM(pnl_usd), 0) AS pnl_usd,
			MAX(sell_time) AS last_sell_time`).
		Where("allocation_version = ?", version).
		Group("symbol").
		Order("symbol asc").
		Scan(&rows).Error
	return rows, err
}

func normalizeLimit(limit, fallback int) int {
	if limit <= 0 || limit > 1000 {
		return fallback
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
