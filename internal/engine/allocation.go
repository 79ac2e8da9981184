package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fifopnl/internal/models"
)

// BuyLeg carries everything that only exists when a sell slice was satisfied
// by a buy. An unmatched remainder has no BuyLeg, so buy-side fields cannot
// be read on it by construction.
type BuyLeg struct {
	OrderID      string
	Price        decimal.Decimal
	FeesPerUnit  decimal.Decimal
	Time         time.Time
	CostBasisUSD decimal.Decimal
	PnLUSD       decimal.Decimal
}

// Allocation is one in-memory matching outcome before rounding and
// persistence. Buy == nil marks the unmatched remainder of a sell.
type Allocation struct {
	Symbol          string
	SellOrderID     string
	AllocatedSize   decimal.Decimal
	SellPrice       decimal.Decimal
	SellFeesPerUnit decimal.Decimal
	ProceedsUSD     decimal.Decimal
	NetProceedsUSD  decimal.Decimal
	SellTime        time.Time
	Notes           string
	Buy             *BuyLeg
}

func (a Allocation) Matched() bool {
	return a.Buy != nil
}

func feesPerUnit(t models.TradeRecord) decimal.Decimal {
	if t.Size.IsZero() {
		return decimal.Zero
	}
	return t.TotalFeesUSD.Div(t.Size)
}

// newMatched computes the financial figures for one buy/sell slice. Values
// stay unrounded here; the symbol's rounding rule is applied once when the
// allocation is flattened into its persisted row.
func newMatched(buy, sell models.TradeRecord, size decimal.Decimal) Allocation {
	buyFees := feesPerUnit(buy)
	sellFees := feesPerUnit(sell)

	costBasis := buy.Price.Add(buyFees).Mul(size)
	proceeds := sell.Price.Mul(size)
	netProceeds := proceeds.Sub(sellFees.Mul(size))
	pnl := netProceeds.Sub(costBasis)

	return Allocation{
		Symbol:          sell.Symbol,
		SellOrderID:     sell.OrderID,
		AllocatedSize:   size,
		SellPrice:       sell.Price,
		SellFeesPerUnit: sellFees,
		ProceedsUSD:     proceeds,
		NetProceedsUSD:  netProceeds,
		SellTime:        sell.OrderTime,
		Buy: &BuyLeg{
			OrderID:      buy.OrderID,
			Price:        buy.Price,
			FeesPerUnit:  buyFees,
			Time:         buy.OrderTime,
			CostBasisUSD: costBasis,
			PnLUSD:       pnl,
		},
	}
}

func newUnmatched(sell models.TradeRecord, size decimal.Decimal) Allocation {
	sellFees := feesPerUnit(sell)
	proceeds := sell.Price.Mul(size)

	return Allocation{
		Symbol:          sell.Symbol,
		SellOrderID:     sell.OrderID,
		AllocatedSize:   size,
		SellPrice:       sell.Price,
		SellFeesPerUnit: sellFees,
		ProceedsUSD:     proceeds,
		NetProceedsUSD:  proceeds.Sub(sellFees.Mul(size)),
		SellTime:        sell.OrderTime,
		Notes:           fmt.Sprintf("unmatched remainder of %s %s on sell %s", size.String(), sell.Symbol, sell.OrderID),
	}
}
