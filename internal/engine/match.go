package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"fifopnl/internal/models"
)

type buyLot struct {
	trade     models.TradeRecord
	remaining decimal.Decimal
}

// matchSymbol runs FIFO matching for one symbol over in-memory slices.
// Buys and sells are consumed in (order_time, order_id) order; a buy is
// never matched against a sell that precedes it. Residuals at or below the
// dust threshold are ignored. The result is fully determined by the inputs.
func matchSymbol(buys, sells []models.TradeRecord, dust decimal.Decimal) []Allocation {
	sortTrades(buys)
	sortTrades(sells)

	lots := make([]buyLot, len(buys))
	for i, b := range buys {
		lots[i] = buyLot{trade: b, remaining: b.Size}
	}

	var allocations []Allocation
	for _, sell := range sells {
		remaining := sell.Size
		for i := range lots {
			if remaining.Cmp(dust) <= 0 {
				break
			}
			lot := &lots[i]
			if lot.remaining.Cmp(dust) <= 0 {
				continue
			}
			if lot.trade.OrderTime.After(sell.OrderTime) {
				continue
			}
			size := decimal.Min(remaining, lot.remaining)
			allocations = append(allocations, newMatched(lot.trade, sell, size))
			lot.remaining = lot.remaining.Sub(size)
			remaining = remaining.Sub(size)
		}
		if remaining.Cmp(dust) > 0 {
			allocations = append(allocations, newUnmatched(sell, remaining))
		}
	}
	return allocations
}

func sortTrades(items []models.TradeRecord) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].OrderTime.Equal(items[j].OrderTime) {
			return items[i].OrderTime.Before(items[j].OrderTime)
		}
		return items[i].OrderID < items[j].OrderID
	})
}
