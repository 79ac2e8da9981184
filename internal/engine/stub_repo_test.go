package engine

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fifopnl/internal/models"
	"fifopnl/internal/repository"
)

// stubRepo is a test-only in-memory implementation of repository.Repository.
// InTx snapshots mutable state and restores it when fn fails, mimicking a
// rolled-back transaction.
type stubRepo struct {
	trades     []models.TradeRecord
	precisions map[string]models.SymbolPrecision

	allocations []models.FifoAllocation
	logs        []models.ComputationLog
	reviews     map[string]models.ManualReviewItem

	failInsertAllocations bool

	nextAllocID  uint64
	nextLogID    uint64
	nextReviewID uint64
}

func newStubRepo(trades ...models.TradeRecord) *stubRepo {
	return &stubRepo{
		trades:  trades,
		reviews: map[string]models.ManualReviewItem{},
	}
}

func (s *stubRepo) InTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	allocs := append([]models.FifoAllocation(nil), s.allocations...)
	reviews := map[string]models.ManualReviewItem{}
	for k, v := range s.reviews {
		reviews[k] = v
	}
	logs := append([]models.ComputationLog(nil), s.logs...)
	if err := fn(nil); err != nil {
		s.allocations = allocs
		s.reviews = reviews
		s.logs = logs
		return err
	}
	return nil
}

func (s *stubRepo) ListBuysTx(_ *gorm.DB, symbol string) ([]models.TradeRecord, error) {
	return s.listTrades(symbol, models.SideBuy), nil
}

func (s *stubRepo) ListSellsTx(_ *gorm.DB, symbol string) ([]models.TradeRecord, error) {
	return s.listTrades(symbol, models.SideSell), nil
}

func (s *stubRepo) listTrades(symbol, side string) []models.TradeRecord {
	var out []models.TradeRecord
	for _, t := range s.trades {
		if t.Symbol == symbol && t.Side == side {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].OrderTime.Equal(out[j].OrderTime) {
			return out[i].OrderTime.Before(out[j].OrderTime)
		}
		return out[i].OrderID < out[j].OrderID
	})
	return out
}

func (s *stubRepo) ListSymbolsTx(*gorm.DB) ([]string, error) {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range s.trades {
		if _, ok := seen[t.Symbol]; ok {
			continue
		}
		seen[t.Symbol] = struct{}{}
		out = append(out, t.Symbol)
	}
	sort.Strings(out)
	return out, nil
}

func (s *stubRepo) CountTradesBySide(_ context.Context, symbol string) (int64, int64, error) {
	var buys, sells int64
	for _, t := range s.trades {
		if symbol != "" && t.Symbol != symbol {
			continue
		}
		switch t.Side {
		case models.SideBuy:
			buys++
		case models.SideSell:
			sells++
		}
	}
	return buys, sells, nil
}

func (s *stubRepo) GetSymbolPrecision(_ context.Context, symbol string) (*models.SymbolPrecision, error) {
	if row, ok := s.precisions[symbol]; ok {
		return &row, nil
	}
	return nil, nil
}

func (s *stubRepo) AcquireVersionLockTx(*gorm.DB, int) error { return nil }

func (s *stubRepo) DeleteAllocationsByVersionTx(_ *gorm.DB, version int) (int64, error) {
	return s.deleteAllocations(func(a models.FifoAllocation) bool {
		return a.AllocationVersion == version
	}), nil
}

func (s *stubRepo) DeleteAllocationsBySymbolTx(_ *gorm.DB, version int, symbol string) (int64, error) {
	return s.deleteAllocations(func(a models.FifoAllocation) bool {
		return a.AllocationVersion == version && a.Symbol == symbol
	}), nil
}

func (s *stubRepo) deleteAllocations(match func(models.FifoAllocation) bool) int64 {
	var kept []models.FifoAllocation
	var deleted int64
	for _, a := range s.allocations {
		if match(a) {
			deleted++
			continue
		}
		kept = append(kept, a)
	}
	s.allocations = kept
	return deleted
}

func (s *stubRepo) InsertAllocationsTx(_ *gorm.DB, items []models.FifoAllocation, _ int) error {
	if s.failInsertAllocations {
		return errors.New("insert failed")
	}
	for _, item := range items {
		s.nextAllocID++
		item.ID = s.nextAllocID
		s.allocations = append(s.allocations, item)
	}
	return nil
}

func (s *stubRepo) SumPnLByVersionTx(_ *gorm.DB, version int) (decimal.Decimal, error) {
	return s.sumPnL(version), nil
}

func (s *stubRepo) SumPnLByVersion(_ context.Context, version int) (decimal.Decimal, error) {
	return s.sumPnL(version), nil
}

func (s *stubRepo) sumPnL(version int) decimal.Decimal {
	total := decimal.Zero
	for _, a := range s.allocations {
		if a.AllocationVersion == version && a.PnLUSD != nil {
			total = total.Add(*a.PnLUSD)
		}
	}
	return total
}

func (s *stubRepo) CountAllocationsByVersion(_ context.Context, version int) (int64, error) {
	var count int64
	for _, a := range s.allocations {
		if a.AllocationVersion == version {
			count++
		}
	}
	return count, nil
}

func (s *stubRepo) ListAllocations(_ context.Context, params repository.ListAllocationsParams) ([]models.FifoAllocation, error) {
	var out []models.FifoAllocation
	for _, a := range s.allocations {
		if a.AllocationVersion != params.Version {
			continue
		}
		if params.Symbol != nil && a.Symbol != *params.Symbol {
			continue
		}
		if params.UnmatchedOnly && a.BuyOrderID != nil {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *stubRepo) InsertComputationLog(_ context.Context, item *models.ComputationLog) error {
	s.nextLogID++
	item.ID = s.nextLogID
	s.logs = append(s.logs, *item)
	return nil
}

func (s *stubRepo) UpdateComputationLog(_ context.Context, item *models.ComputationLog) error {
	return s.updateLog(item)
}

func (s *stubRepo) UpdateComputationLogTx(_ *gorm.DB, item *models.ComputationLog) error {
	return s.updateLog(item)
}

func (s *stubRepo) updateLog(item *models.ComputationLog) error {
	for i := range s.logs {
		if s.logs[i].ID == item.ID {
			s.logs[i] = *item
			return nil
		}
	}
	return errors.New("log row not found")
}

func (s *stubRepo) ListComputationLogs(context.Context, int) ([]models.ComputationLog, error) {
	return append([]models.ComputationLog(nil), s.logs...), nil
}

func (s *stubRepo) UpsertManualReviewItemTx(_ *gorm.DB, item *models.ManualReviewItem) error {
	key := item.OrderID + "|" + item.IssueType
	if existing, ok := s.reviews[key]; ok {
		existing.Symbol = item.Symbol
		existing.Severity = item.Severity
		existing.Description = item.Description
		existing.UpdatedAt = time.Now().UTC()
		s.reviews[key] = existing
		return nil
	}
	s.nextReviewID++
	item.ID = s.nextReviewID
	item.CreatedAt = time.Now().UTC()
	item.UpdatedAt = item.CreatedAt
	s.reviews[key] = *item
	return nil
}

func (s *stubRepo) ListManualReviewItems(_ context.Context, params repository.ListReviewParams) ([]models.ManualReviewItem, error) {
	var out []models.ManualReviewItem
	for _, item := range s.reviews {
		if params.Status != nil && item.Status != *params.Status {
			continue
		}
		if params.Symbol != nil && item.Symbol != *params.Symbol {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *stubRepo) UpdateManualReviewStatus(_ context.Context, id uint64, status string) error {
	for key, item := range s.reviews {
		if item.ID == id {
			item.Status = status
			s.reviews[key] = item
			return nil
		}
	}
	return errors.New("review item not found")
}

func (s *stubRepo) CountPendingReviewItems(context.Context) (int64, error) {
	var count int64
	for _, item := range s.reviews {
		if item.Status == models.ReviewStatusPending {
			count++
		}
	}
	return count, nil
}

func (s *stubRepo) ListSellAllocationTotals(context.Context, int) ([]repository.SellAllocationTotal, error) {
	return nil, nil
}

func (s *stubRepo) ListBuyAllocationTotals(context.Context, int) ([]repository.BuyAllocationTotal, error) {
	return nil, nil
}

func (s *stubRepo) ListDuplicateAllocationGroups(context.Context, int) ([]repository.DuplicateGroup, error) {
	return nil, nil
}

func (s *stubRepo) ListTemporalViolations(context.Context, int) ([]models.FifoAllocation, error) {
	return nil, nil
}

func (s *stubRepo) CountUnmatchedAllocations(context.Context, int) (int64, error) {
	return 0, nil
}

func (s *stubRepo) ListSymbolAllocationStats(context.Context, int) ([]repository.SymbolAllocationStat, error) {
	return nil, nil
}
