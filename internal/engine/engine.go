package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"fifopnl/internal/config"
	"fifopnl/internal/models"
	"fifopnl/internal/precision"
	"fifopnl/internal/repository"
)

// Engine computes FIFO buy/sell allocations for an allocation version.
// Callers supply the version explicitly; recomputing a version clears its
// rows and rebuilds them inside one transaction. A transaction-scoped
// advisory lock keyed by the version serializes concurrent computations of
// the same version; runs for different versions do not contend.
type Engine struct {
	Repo      repository.Repository
	Precision precision.Provider
	Logger    *zap.Logger
	Config    config.ComputeConfig
}

// ComputationResult summarizes one engine run. It is returned and logged,
// never persisted as a row; the durable record is the computation log.
type ComputationResult struct {
	Success            bool
	Version            int
	BatchID            string
	Mode               string
	Symbols            []string
	BuysProcessed      int
	SellsProcessed     int
	AllocationsCreated int
	TotalPnLUSD        decimal.Decimal
	Duration           time.Duration
	ErrorMessage       string
}

type symbolCounts struct {
	buys        int
	sells       int
	allocations int
}

// ComputeAllSymbols clears every allocation row for the version and rebuilds
// all symbols from the ledger inside one transaction. On any failure the
// transaction rolls back completely and the computation log records the
// error; nothing is half-persisted.
func (e *Engine) ComputeAllSymbols(ctx context.Context, version int, triggeredBy string) ComputationResult {
	res := ComputationResult{
		Version: version,
		BatchID: uuid.NewString(),
		Mode:    models.ComputationModeFull,
	}
	if e == nil || e.Repo == nil {
		res.ErrorMessage = "engine not configured"
		return res
	}

	started := time.Now().UTC()
	logRow := &models.ComputationLog{
		AllocationVersion: version,
		BatchID:           res.BatchID,
		Mode:              models.ComputationModeFull,
		Status:            models.ComputationStatusRunning,
		TriggeredBy:       triggeredBy,
		StartedAt:         started,
	}
	if err := e.Repo.InsertComputationLog(ctx, logRow); err != nil {
		return e.finishFailed(ctx, nil, res, started, err)
	}

	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := e.Repo.AcquireVersionLockTx(tx, version); err != nil {
			return err
		}
		if _, err := e.Repo.DeleteAllocationsByVersionTx(tx, version); err != nil {
			return err
		}
		symbols, err := e.Repo.ListSymbolsTx(tx)
		if err != nil {
			return err
		}
		res.Symbols = symbols
		for _, symbol := range symbols {
			counts, err := e.computeSymbolTx(ctx, tx, symbol, version, res.BatchID)
			if err != nil {
				return fmt.Errorf("symbol %s: %w", symbol, err)
			}
			res.BuysProcessed += counts.buys
			res.SellsProcessed += counts.sells
			res.AllocationsCreated += counts.allocations
		}
		total, err := e.Repo.SumPnLByVersionTx(tx, version)
		if err != nil {
			return err
		}
		res.TotalPnLUSD = total
		return e.completeLogTx(tx, logRow, &res, started)
	})
	if err != nil {
		return e.finishFailed(ctx, logRow, res, started, err)
	}

	res.Success = true
	res.Duration = time.Since(started)
	if e.Logger != nil {
		e.Logger.Info("fifo computation completed",
			zap.Int("version", version),
			zap.String("batch_id", res.BatchID),
			zap.Int("symbols", len(res.Symbols)),
			zap.Int("allocations", res.AllocationsCreated),
			zap.String("total_pnl_usd", res.TotalPnLUSD.String()),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

// ComputeSymbol recomputes a single symbol for the version without touching
// other symbols' rows. An empty batchID gets a fresh UUID.
func (e *Engine) ComputeSymbol(ctx context.Context, symbol string, version int, batchID, triggeredBy string) ComputationResult {
	if batchID == "" {
		batchID = uuid.NewString()
	}
	res := ComputationResult{
		Version: version,
		BatchID: batchID,
		Mode:    models.ComputationModeSingleSymbol,
		Symbols: []string{symbol},
	}
	if e == nil || e.Repo == nil {
		res.ErrorMessage = "engine not configured"
		return res
	}

	started := time.Now().UTC()
	logRow := &models.ComputationLog{
		Symbol:            &symbol,
		AllocationVersion: version,
		BatchID:           batchID,
		Mode:              models.ComputationModeSingleSymbol,
		Status:            models.ComputationStatusRunning,
		TriggeredBy:       triggeredBy,
		StartedAt:         started,
	}
	if err := e.Repo.InsertComputationLog(ctx, logRow); err != nil {
		return e.finishFailed(ctx, nil, res, started, err)
	}

	err := e.Repo.InTx(ctx, func(tx *gorm.DB) error {
		if err := e.Repo.AcquireVersionLockTx(tx, version); err != nil {
			return err
		}
		if _, err := e.Repo.DeleteAllocationsBySymbolTx(tx, version, symbol); err != nil {
			return err
		}
		counts, err := e.computeSymbolTx(ctx, tx, symbol, version, batchID)
		if err != nil {
			return err
		}
		res.BuysProcessed = counts.buys
		res.SellsProcessed = counts.sells
		res.AllocationsCreated = counts.allocations
		total, err := e.Repo.SumPnLByVersionTx(tx, version)
		if err != nil {
			return err
		}
		res.TotalPnLUSD = total
		return e.completeLogTx(tx, logRow, &res, started)
	})
	if err != nil {
		return e.finishFailed(ctx, logRow, res, started, err)
	}

	res.Success = true
	res.Duration = time.Since(started)
	if e.Logger != nil {
		e.Logger.Info("fifo symbol computation completed",
			zap.String("symbol", symbol),
			zap.Int("version", version),
			zap.String("batch_id", batchID),
			zap.Int("allocations", res.AllocationsCreated),
			zap.Duration("duration", res.Duration),
		)
	}
	return res
}

// computeSymbolTx fetches the symbol's ledger slice, runs the matcher, and
// persists allocation rows plus review-queue entries for unmatched sells.
func (e *Engine) computeSymbolTx(ctx context.Context, tx *gorm.DB, symbol string, version int, batchID string) (symbolCounts, error) {
	buys, err := e.Repo.ListBuysTx(tx, symbol)
	if err != nil {
		return symbolCounts{}, err
	}
	sells, err := e.Repo.ListSellsTx(tx, symbol)
	if err != nil {
		return symbolCounts{}, err
	}
	counts := symbolCounts{buys: len(buys), sells: len(sells)}
	if len(sells) == 0 {
		return counts, nil
	}

	dust := e.Precision.DustThreshold(ctx, symbol)
	allocations := matchSymbol(buys, sells, dust)

	rows := make([]models.FifoAllocation, 0, len(allocations))
	for _, a := range allocations {
		rows = append(rows, e.toModel(ctx, a, version, batchID))
	}
	if err := e.Repo.InsertAllocationsTx(tx, rows, e.Config.InsertBatchSize); err != nil {
		return counts, err
	}

	for _, a := range allocations {
		if a.Matched() {
			continue
		}
		item := &models.ManualReviewItem{
			OrderID:     a.SellOrderID,
			IssueType:   models.IssueUnmatchedSell,
			Symbol:      symbol,
			Severity:    models.ReviewSeverityMedium,
			Status:      models.ReviewStatusPending,
			Description: fmt.Sprintf("sell %s has unmatched quantity %s %s in version %d", a.SellOrderID, a.AllocatedSize.String(), symbol, version),
		}
		if err := e.Repo.UpsertManualReviewItemTx(tx, item); err != nil {
			return counts, err
		}
		if e.Logger != nil {
			e.Logger.Warn("unmatched sell flagged for review",
				zap.String("symbol", symbol),
				zap.String("sell_order_id", a.SellOrderID),
				zap.String("unmatched_size", a.AllocatedSize.String()),
			)
		}
	}
	counts.allocations = len(allocations)
	return counts, nil
}

// toModel flattens the matched/unmatched variant into its persisted row.
// This is the one place the four USD figures get the symbol's banker's
// rounding, after the full computation rather than per intermediate step.
func (e *Engine) toModel(ctx context.Context, a Allocation, version int, batchID string) models.FifoAllocation {
	row := models.FifoAllocation{
		AllocationVersion: version,
		SellOrderID:       a.SellOrderID,
		Symbol:            a.Symbol,
		AllocatedSize:     a.AllocatedSize,
		SellPrice:         a.SellPrice,
		SellFeesPerUnit:   a.SellFeesPerUnit,
		ProceedsUSD:       e.Precision.RoundFinancial(ctx, a.ProceedsUSD, a.Symbol),
		NetProceedsUSD:    e.Precision.RoundFinancial(ctx, a.NetProceedsUSD, a.Symbol),
		SellTime:          a.SellTime,
		AllocationBatchID: batchID,
	}
	if a.Buy != nil {
		buyID := a.Buy.OrderID
		buyPrice := a.Buy.Price
		buyTime := a.Buy.Time
		costBasis := e.Precision.RoundFinancial(ctx, a.Buy.CostBasisUSD, a.Symbol)
		pnl := e.Precision.RoundFinancial(ctx, a.Buy.PnLUSD, a.Symbol)
		row.BuyOrderID = &buyID
		row.BuyPrice = &buyPrice
		row.BuyTime = &buyTime
		row.BuyFeesPerUnit = a.Buy.FeesPerUnit
		row.CostBasisUSD = &costBasis
		row.PnLUSD = &pnl
	} else {
		notes := a.Notes
		row.Notes = &notes
	}
	return row
}

func (e *Engine) completeLogTx(tx *gorm.DB, logRow *models.ComputationLog, res *ComputationResult, started time.Time) error {
	now := time.Now().UTC()
	durationMs := now.Sub(started).Milliseconds()
	total := res.TotalPnLUSD
	logRow.Status = models.ComputationStatusCompleted
	logRow.CompletedAt = &now
	logRow.DurationMs = &durationMs
	logRow.BuysProcessed = res.BuysProcessed
	logRow.SellsProcessed = res.SellsProcessed
	logRow.AllocationsCreated = res.AllocationsCreated
	logRow.TotalPnLUSD = &total
	if b, err := json.Marshal(res.Symbols); err == nil {
		logRow.Symbols = datatypes.JSON(b)
	}
	return e.Repo.UpdateComputationLogTx(tx, logRow)
}

// finishFailed records the failure outside the rolled-back transaction so
// the audit trail survives, and returns the error inside a failed result.
func (e *Engine) finishFailed(ctx context.Context, logRow *models.ComputationLog, res ComputationResult, started time.Time, cause error) ComputationResult {
	res.Duration = time.Since(started)
	res.ErrorMessage = cause.Error()
	if logRow != nil && logRow.ID != 0 {
		now := time.Now().UTC()
		durationMs := res.Duration.Milliseconds()
		msg := cause.Error()
		logRow.Status = models.ComputationStatusFailed
		logRow.CompletedAt = &now
		logRow.DurationMs = &durationMs
		logRow.ErrorMessage = &msg
		if err := e.Repo.UpdateComputationLog(ctx, logRow); err != nil && e.Logger != nil {
			e.Logger.Error("failed to record computation failure", zap.Error(err))
		}
	}
	if e.Logger != nil {
		e.Logger.Error("fifo computation failed",
			zap.Int("version", res.Version),
			zap.String("batch_id", res.BatchID),
			zap.String("mode", res.Mode),
			zap.Error(cause),
		)
	}
	return res
}
