package validator

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fifopnl/internal/repository"
)

// HealthReport is a reporting convenience over the allocation and ledger
// tables, not a correctness check.
type HealthReport struct {
	AllocationVersion  int
	GeneratedAt        time.Time
	TotalAllocations   int64
	TotalPnLUSD        decimal.Decimal
	Symbols            []repository.SymbolAllocationStat
	Discrepancies      []Discrepancy
	OverAllocatedBuys  []repository.BuyAllocationTotal
	UnmatchedSells     []UnmatchedSell
	PendingReviewItems int64
}

type Discrepancy struct {
	SellOrderID    string
	Symbol         string
	SellSize       decimal.Decimal
	AllocatedTotal decimal.Decimal
	Difference     decimal.Decimal
	Kind           string // "under_allocated" or "over_allocated"
}

type UnmatchedSell struct {
	SellOrderID   string
	Symbol        string
	UnmatchedSize decimal.Decimal
	SellTime      time.Time
	Notes         string
}

func (v *Validator) GenerateHealthReport(ctx context.Context, version int) (*HealthReport, error) {
	report := &HealthReport{
		AllocationVersion: version,
		GeneratedAt:       time.Now().UTC(),
	}

	total, err := v.Repo.CountAllocationsByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	report.TotalAllocations = total

	pnl, err := v.Repo.SumPnLByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	report.TotalPnLUSD = pnl

	stats, err := v.Repo.ListSymbolAllocationStats(ctx, version)
	if err != nil {
		return nil, err
	}
	report.Symbols = stats

	totals, err := v.Repo.ListSellAllocationTotals(ctx, version)
	if err != nil {
		return nil, err
	}
	under, over := classifyCompleteness(totals, func(symbol string) decimal.Decimal {
		return v.Precision.DustThreshold(ctx, symbol)
	})
	for _, row := range under {
		report.Discrepancies = append(report.Discrepancies, discrepancyFrom(row, "under_allocated"))
	}
	for _, row := range over {
		report.Discrepancies = append(report.Discrepancies, discrepancyFrom(row, "over_allocated"))
	}

	buyTotals, err := v.Repo.ListBuyAllocationTotals(ctx, version)
	if err != nil {
		return nil, err
	}
	for _, row := range buyTotals {
		excess := row.AllocatedTotal.Sub(row.BuySize)
		if excess.Cmp(v.Precision.DustThreshold(ctx, row.Symbol)) > 0 {
			report.OverAllocatedBuys = append(report.OverAllocatedBuys, row)
		}
	}

	unmatched, err := v.Repo.ListAllocations(ctx, repository.ListAllocationsParams{
		Version:       version,
		UnmatchedOnly: true,
	})
	if err != nil {
		return nil, err
	}
	for _, a := range unmatched {
		notes := ""
		if a.Notes != nil {
			notes = *a.Notes
		}
		report.UnmatchedSells = append(report.UnmatchedSells, UnmatchedSell{
			SellOrderID:   a.SellOrderID,
			Symbol:        a.Symbol,
			UnmatchedSize: a.AllocatedSize,
			SellTime:      a.SellTime,
			Notes:         notes,
		})
	}

	pending, err := v.Repo.CountPendingReviewItems(ctx)
	if err != nil {
		return nil, err
	}
	report.PendingReviewItems = pending

	return report, nil
}

func discrepancyFrom(row repository.SellAllocationTotal, kind string) Discrepancy {
	return Discrepancy{
		SellOrderID:    row.SellOrderID,
		Symbol:         row.Symbol,
		SellSize:       row.SellSize,
		AllocatedTotal: row.AllocatedTotal,
		Difference:     row.SellSize.Sub(row.AllocatedTotal),
		Kind:           kind,
	}
}
