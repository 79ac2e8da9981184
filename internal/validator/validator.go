// Package validator runs post-hoc correctness checks over a persisted
// allocation version. It never mutates allocation data: violations are
// collected as structured messages, not raised as errors.
package validator

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fifopnl/internal/precision"
	"fifopnl/internal/repository"
)

type Validator struct {
	Repo      repository.Repository
	Precision precision.Provider
	Logger    *zap.Logger
}

// ValidationResult is built fresh by each run and rendered to operators.
// Valid is false when any check produced an error, or in strict mode when
// any check produced a warning.
type ValidationResult struct {
	AllocationVersion int
	Strict            bool
	Valid             bool
	CheckedAt         time.Time

	TotalAllocations     int64
	TotalBuys            int64
	TotalSells           int64
	UnmatchedSells       int64
	UnderAllocatedSells  int
	OverAllocatedSells   int
	DuplicateAllocations int

	TotalPnLUSD decimal.Decimal

	Errors   []string
	Warnings []string
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateVersion runs the four checks against committed state. The error
// return covers query failures only; invariant violations land in the
// result. Do not point this at a version whose computation is still in
// flight: it would observe a partially rebuilt table.
func (v *Validator) ValidateVersion(ctx context.Context, version int, strict bool) (*ValidationResult, error) {
	res := &ValidationResult{
		AllocationVersion: version,
		Strict:            strict,
		CheckedAt:         time.Now().UTC(),
	}

	total, err := v.Repo.CountAllocationsByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	res.TotalAllocations = total

	buys, sells, err := v.Repo.CountTradesBySide(ctx, "")
	if err != nil {
		return nil, err
	}
	res.TotalBuys = buys
	res.TotalSells = sells

	if err := v.checkUnmatchedSells(ctx, version, res); err != nil {
		return nil, err
	}
	if err := v.checkCompleteness(ctx, version, res); err != nil {
		return nil, err
	}
	if err := v.checkDuplicates(ctx, version, res); err != nil {
		return nil, err
	}
	if err := v.checkTemporal(ctx, version, res); err != nil {
		return nil, err
	}

	pnl, err := v.Repo.SumPnLByVersion(ctx, version)
	if err != nil {
		return nil, err
	}
	res.TotalPnLUSD = pnl

	res.Valid = len(res.Errors) == 0 && (!strict || len(res.Warnings) == 0)
	if v.Logger != nil {
		v.Logger.Info("validation finished",
			zap.Int("version", version),
			zap.Bool("valid", res.Valid),
			zap.Int("errors", len(res.Errors)),
			zap.Int("warnings", len(res.Warnings)),
		)
	}
	return res, nil
}

// Unmatched sells are an expected, flagged state: always a warning.
func (v *Validator) checkUnmatchedSells(ctx context.Context, version int, res *ValidationResult) error {
	count, err := v.Repo.CountUnmatchedAllocations(ctx, version)
	if err != nil {
		return err
	}
	res.UnmatchedSells = count
	if count > 0 {
		res.addWarning("%d unmatched sell allocation(s) in version %d", count, version)
	}
	return nil
}

func (v *Validator) checkCompleteness(ctx context.Context, version int, res *ValidationResult) error {
	totals, err := v.Repo.ListSellAllocationTotals(ctx, version)
	if err != nil {
		return err
	}
	under, over := classifyCompleteness(totals, func(symbol string) decimal.Decimal {
		return v.Precision.DustThreshold(ctx, symbol)
	})
	res.UnderAllocatedSells = len(under)
	res.OverAllocatedSells = len(over)
	for _, row := range under {
		res.addError("sell %s (%s) under-allocated: size=%s allocated=%s",
			row.SellOrderID, row.Symbol, row.SellSize.String(), row.AllocatedTotal.String())
	}
	for _, row := range over {
		res.addError("sell %s (%s) over-allocated: size=%s allocated=%s",
			row.SellOrderID, row.Symbol, row.SellSize.String(), row.AllocatedTotal.String())
	}
	return nil
}

// classifyCompleteness splits sells whose allocated total drifts from the
// sell size by more than the symbol's dust threshold. The dust threshold is
// the single tolerance source; the SQL behind the totals carries none.
func classifyCompleteness(totals []repository.SellAllocationTotal, dustFor func(symbol string) decimal.Decimal) (under, over []repository.SellAllocationTotal) {
	for _, row := range totals {
		diff := row.SellSize.Sub(row.AllocatedTotal)
		if diff.Abs().Cmp(dustFor(row.Symbol)) <= 0 {
			continue
		}
		if diff.IsPositive() {
			under = append(under, row)
		} else {
			over = append(over, row)
		}
	}
	return under, over
}

func (v *Validator) checkDuplicates(ctx context.Context, version int, res *ValidationResult) error {
	groups, err := v.Repo.ListDuplicateAllocationGroups(ctx, version)
	if err != nil {
		return err
	}
	res.DuplicateAllocations = len(groups)
	for _, g := range groups {
		buyID := "<unmatched>"
		if g.BuyOrderID != nil {
			buyID = *g.BuyOrderID
		}
		res.addError("duplicate allocation (sell=%s buy=%s) appears %d times in version %d",
			g.SellOrderID, buyID, g.Count, version)
	}
	return nil
}

func (v *Validator) checkTemporal(ctx context.Context, version int, res *ValidationResult) error {
	items, err := v.Repo.ListTemporalViolations(ctx, version)
	if err != nil {
		return err
	}
	for _, a := range items {
		buyID := ""
		if a.BuyOrderID != nil {
			buyID = *a.BuyOrderID
		}
		res.addError("temporal violation: buy %s (%s) at %s matched against earlier sell %s at %s",
			buyID, a.Symbol, a.BuyTime.UTC().Format(time.RFC3339), a.SellOrderID, a.SellTime.UTC().Format(time.RFC3339))
	}
	return nil
}
