// Package precision supplies per-symbol dust thresholds and the banker's
// rounding rule applied to computed USD amounts.
package precision

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"fifopnl/internal/models"
)

// Store is the narrow lookup the table-driven provider needs.
type Store interface {
	GetSymbolPrecision(ctx context.Context, symbol string) (*models.SymbolPrecision, error)
}

// Provider is chosen once at construction time; the engine and validator
// never probe which implementation they were given.
type Provider interface {
	DustThreshold(ctx context.Context, symbol string) decimal.Decimal
	RoundFinancial(ctx context.Context, value decimal.Decimal, symbol string) decimal.Decimal
}

const defaultDecimals int32 = 8

// defaultDust is 1e-8, the smallest quantity treated as significant when a
// symbol has no configured precision.
var defaultDust = decimal.New(1, -8)

// Static applies the same dust threshold and rounding rule to every symbol.
type Static struct {
	Dust     decimal.Decimal
	Decimals int32
}

func NewStatic() *Static {
	return &Static{Dust: defaultDust, Decimals: defaultDecimals}
}

func NewStaticWith(dust decimal.Decimal, decimals int32) *Static {
	s := NewStatic()
	if dust.IsPositive() {
		s.Dust = dust
	}
	if decimals > 0 {
		s.Decimals = decimals
	}
	return s
}

func (s *Static) DustThreshold(context.Context, string) decimal.Decimal {
	return s.Dust
}

func (s *Static) RoundFinancial(_ context.Context, value decimal.Decimal, _ string) decimal.Decimal {
	return value.RoundBank(s.Decimals)
}

// Table reads symbol_precisions through the repository and falls back to the
// static defaults when a symbol is absent or the lookup fails. Lookups are
// cached for the lifetime of the provider; precision rows change rarely and
// a compute run must see one consistent threshold per symbol anyway.
type Table struct {
	store    Store
	fallback *Static

	mu    sync.RWMutex
	cache map[string]models.SymbolPrecision
}

func NewTable(store Store, fallback *Static) *Table {
	if fallback == nil {
		fallback = NewStatic()
	}
	return &Table{
		store:    store,
		fallback: fallback,
		cache:    make(map[string]models.SymbolPrecision),
	}
}

func (t *Table) DustThreshold(ctx context.Context, symbol string) decimal.Decimal {
	if row, ok := t.lookup(ctx, symbol); ok {
		return row.DustThreshold
	}
	return t.fallback.Dust
}

func (t *Table) RoundFinancial(ctx context.Context, value decimal.Decimal, symbol string) decimal.Decimal {
	if row, ok := t.lookup(ctx, symbol); ok && row.RoundingDecimals > 0 {
		return value.RoundBank(row.RoundingDecimals)
	}
	return value.RoundBank(t.fallback.Decimals)
}

func (t *Table) lookup(ctx context.Context, symbol string) (models.SymbolPrecision, bool) {
	t.mu.RLock()
	row, ok := t.cache[symbol]
	t.mu.RUnlock()
	if ok {
		return row, row.Symbol != ""
	}

	fetched, err := t.store.GetSymbolPrecision(ctx, symbol)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		// Transient lookup failure: fall back but do not poison the cache.
		return models.SymbolPrecision{}, false
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if fetched == nil {
		// Negative entry: remember the symbol has no configured precision.
		t.cache[symbol] = models.SymbolPrecision{}
		return models.SymbolPrecision{}, false
	}
	t.cache[symbol] = *fetched
	return *fetched, true
}
