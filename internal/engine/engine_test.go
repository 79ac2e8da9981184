package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"fifopnl/internal/config"
	"fifopnl/internal/models"
	"fifopnl/internal/precision"
	"fifopnl/internal/repository"
)

func newTestEngine(repo *stubRepo) *Engine {
	return &Engine{
		Repo:      repo,
		Precision: precision.NewStatic(),
		Config:    config.ComputeConfig{InsertBatchSize: 100},
	}
}

func TestComputeAllSymbols_SimpleMatch(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("buy2", "BTC-USD", models.SideBuy, "1.0", "110", "0", testBase.Add(time.Minute)),
		trade("sell1", "BTC-USD", models.SideSell, "1.5", "120", "0", testBase.Add(2*time.Minute)),
	)
	e := newTestEngine(repo)

	res := e.ComputeAllSymbols(context.Background(), 1, "test")
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorMessage)
	}
	if res.BuysProcessed != 2 || res.SellsProcessed != 1 || res.AllocationsCreated != 2 {
		t.Fatalf("counts=%d/%d/%d want 2/1/2", res.BuysProcessed, res.SellsProcessed, res.AllocationsCreated)
	}
	// pnl: (120-100)*1 + (120-110)*0.5 = 25
	if res.TotalPnLUSD.Cmp(decimal.NewFromInt(25)) != 0 {
		t.Fatalf("total pnl=%s want 25", res.TotalPnLUSD)
	}
	if len(repo.allocations) != 2 {
		t.Fatalf("persisted allocations=%d want 2", len(repo.allocations))
	}
	for _, a := range repo.allocations {
		if a.BuyOrderID == nil {
			t.Fatalf("unexpected unmatched allocation: %+v", a)
		}
		if a.BuyTime.After(a.SellTime) {
			t.Fatalf("temporal invariant broken: buy_time after sell_time")
		}
		if a.AllocationBatchID != res.BatchID {
			t.Fatalf("batch id mismatch")
		}
	}
	if len(repo.logs) != 1 || repo.logs[0].Status != models.ComputationStatusCompleted {
		t.Fatalf("computation log not completed: %+v", repo.logs)
	}
	if repo.logs[0].CompletedAt == nil || repo.logs[0].DurationMs == nil {
		t.Fatalf("completed log must carry end time and duration")
	}
}

func TestComputeAllSymbols_UnmatchedRemainderQueuesReview(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("sell1", "BTC-USD", models.SideSell, "2.0", "120", "0", testBase.Add(time.Minute)),
	)
	e := newTestEngine(repo)

	res := e.ComputeAllSymbols(context.Background(), 1, "test")
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorMessage)
	}
	if res.AllocationsCreated != 2 {
		t.Fatalf("allocations=%d want 2 (one matched + one unmatched)", res.AllocationsCreated)
	}

	var unmatched *models.FifoAllocation
	for i := range repo.allocations {
		if repo.allocations[i].BuyOrderID == nil {
			unmatched = &repo.allocations[i]
		}
	}
	if unmatched == nil {
		t.Fatalf("expected an unmatched allocation row")
	}
	if unmatched.CostBasisUSD != nil || unmatched.PnLUSD != nil || unmatched.BuyPrice != nil || unmatched.BuyTime != nil {
		t.Fatalf("unmatched row must have nil buy-side fields: %+v", unmatched)
	}
	if unmatched.Notes == nil {
		t.Fatalf("unmatched row must carry notes")
	}

	items, _ := repo.ListManualReviewItems(context.Background(), repository.ListReviewParams{})
	if len(items) != 1 {
		t.Fatalf("review items=%d want 1", len(items))
	}
	item := items[0]
	if item.IssueType != models.IssueUnmatchedSell || item.Severity != models.ReviewSeverityMedium {
		t.Fatalf("unexpected review item: %+v", item)
	}
	if item.Status != models.ReviewStatusPending {
		t.Fatalf("review status=%s want pending", item.Status)
	}

	// Recompute: the review item is updated in place, never duplicated.
	res = e.ComputeAllSymbols(context.Background(), 1, "test")
	if !res.Success {
		t.Fatalf("second run failed: %s", res.ErrorMessage)
	}
	items, _ = repo.ListManualReviewItems(context.Background(), repository.ListReviewParams{})
	if len(items) != 1 {
		t.Fatalf("review items after recompute=%d want 1", len(items))
	}
}

func TestComputeAllSymbols_IdempotentClearing(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("buy2", "ETH-USD", models.SideBuy, "2.0", "50", "0", testBase),
		trade("sell1", "BTC-USD", models.SideSell, "0.5", "120", "0", testBase.Add(time.Minute)),
		trade("sell2", "ETH-USD", models.SideSell, "1.0", "60", "0", testBase.Add(time.Minute)),
	)
	e := newTestEngine(repo)

	first := e.ComputeAllSymbols(context.Background(), 3, "test")
	if !first.Success {
		t.Fatalf("first run failed: %s", first.ErrorMessage)
	}
	countAfterFirst := len(repo.allocations)

	second := e.ComputeAllSymbols(context.Background(), 3, "test")
	if !second.Success {
		t.Fatalf("second run failed: %s", second.ErrorMessage)
	}
	if len(repo.allocations) != countAfterFirst {
		t.Fatalf("stale rows survived recompute: %d vs %d", len(repo.allocations), countAfterFirst)
	}
	if first.AllocationsCreated != second.AllocationsCreated {
		t.Fatalf("runs disagree: %d vs %d allocations", first.AllocationsCreated, second.AllocationsCreated)
	}
	if first.TotalPnLUSD.Cmp(second.TotalPnLUSD) != 0 {
		t.Fatalf("runs disagree on pnl: %s vs %s", first.TotalPnLUSD, second.TotalPnLUSD)
	}
}

func TestComputeAllSymbols_VersionsAreIndependent(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("sell1", "BTC-USD", models.SideSell, "0.5", "120", "0", testBase.Add(time.Minute)),
	)
	e := newTestEngine(repo)

	if res := e.ComputeAllSymbols(context.Background(), 1, "test"); !res.Success {
		t.Fatalf("v1 failed: %s", res.ErrorMessage)
	}
	if res := e.ComputeAllSymbols(context.Background(), 2, "test"); !res.Success {
		t.Fatalf("v2 failed: %s", res.ErrorMessage)
	}

	v1, _ := repo.CountAllocationsByVersion(context.Background(), 1)
	v2, _ := repo.CountAllocationsByVersion(context.Background(), 2)
	if v1 != 1 || v2 != 1 {
		t.Fatalf("per-version counts=%d/%d want 1/1", v1, v2)
	}
}

func TestComputeAllSymbols_FailureRollsBack(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("sell1", "BTC-USD", models.SideSell, "0.5", "120", "0", testBase.Add(time.Minute)),
	)
	repo.failInsertAllocations = true
	e := newTestEngine(repo)

	res := e.ComputeAllSymbols(context.Background(), 1, "test")
	if res.Success {
		t.Fatalf("run should have failed")
	}
	if res.ErrorMessage == "" {
		t.Fatalf("failed result must carry the error message")
	}
	if len(repo.allocations) != 0 {
		t.Fatalf("failed run persisted %d allocations; want 0", len(repo.allocations))
	}
	if len(repo.logs) != 1 {
		t.Fatalf("logs=%d want 1", len(repo.logs))
	}
	logRow := repo.logs[0]
	if logRow.Status != models.ComputationStatusFailed {
		t.Fatalf("log status=%s want failed", logRow.Status)
	}
	if logRow.ErrorMessage == nil || *logRow.ErrorMessage == "" {
		t.Fatalf("failed log must carry the error message")
	}
}

func TestComputeAllSymbols_NoSellsIsNoOp(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("buy2", "BTC-USD", models.SideBuy, "2.0", "90", "0", testBase.Add(time.Minute)),
	)
	e := newTestEngine(repo)

	res := e.ComputeAllSymbols(context.Background(), 1, "test")
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorMessage)
	}
	if res.BuysProcessed != 2 || res.SellsProcessed != 0 || res.AllocationsCreated != 0 {
		t.Fatalf("counts=%d/%d/%d want 2/0/0", res.BuysProcessed, res.SellsProcessed, res.AllocationsCreated)
	}
}

func TestComputeSymbol_LeavesOtherSymbolsAlone(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("sell1", "BTC-USD", models.SideSell, "0.5", "120", "0", testBase.Add(time.Minute)),
		trade("buy2", "ETH-USD", models.SideBuy, "2.0", "50", "0", testBase),
		trade("sell2", "ETH-USD", models.SideSell, "1.0", "60", "0", testBase.Add(time.Minute)),
	)
	e := newTestEngine(repo)

	if res := e.ComputeAllSymbols(context.Background(), 1, "test"); !res.Success {
		t.Fatalf("full run failed: %s", res.ErrorMessage)
	}
	before := len(repo.allocations)

	res := e.ComputeSymbol(context.Background(), "BTC-USD", 1, "", "test")
	if !res.Success {
		t.Fatalf("symbol run failed: %s", res.ErrorMessage)
	}
	if res.Mode != models.ComputationModeSingleSymbol {
		t.Fatalf("mode=%s want single-symbol", res.Mode)
	}
	if len(repo.allocations) != before {
		t.Fatalf("allocations=%d want %d", len(repo.allocations), before)
	}

	eth := 0
	for _, a := range repo.allocations {
		if a.Symbol == "ETH-USD" {
			eth++
		}
	}
	if eth != 1 {
		t.Fatalf("ETH-USD rows=%d want 1 (must not be cleared by BTC-USD recompute)", eth)
	}
}

func TestComputeSymbol_GeneratesBatchIDWhenEmpty(t *testing.T) {
	repo := newStubRepo(
		trade("buy1", "BTC-USD", models.SideBuy, "1.0", "100", "0", testBase),
		trade("sell1", "BTC-USD", models.SideSell, "0.5", "120", "0", testBase.Add(time.Minute)),
	)
	e := newTestEngine(repo)

	res := e.ComputeSymbol(context.Background(), "BTC-USD", 1, "", "test")
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorMessage)
	}
	if res.BatchID == "" {
		t.Fatalf("batch id must be generated")
	}

	res = e.ComputeSymbol(context.Background(), "BTC-USD", 1, "11111111-2222-3333-4444-555555555555", "test")
	if !res.Success {
		t.Fatalf("run failed: %s", res.ErrorMessage)
	}
	if res.BatchID != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("caller-supplied batch id was replaced: %s", res.BatchID)
	}
}

func TestToModel_RoundsAfterComputation(t *testing.T) {
	repo := newStubRepo()
	e := newTestEngine(repo)

	buy := trade("buy1", "BTC-USD", models.SideBuy, "3", "100", "1", testBase)
	sell := trade("sell1", "BTC-USD", models.SideSell, "3", "120", "1", testBase.Add(time.Minute))
	a := newMatched(buy, sell, decimal.NewFromInt(1))

	row := e.toModel(context.Background(), a, 1, "batch")
	// buy fees/unit = 1/3 (repeating); cost basis rounds to 8 decimals only
	// at persistence time.
	if row.CostBasisUSD == nil {
		t.Fatalf("matched row must carry cost basis")
	}
	if got, want := row.CostBasisUSD.String(), "100.33333333"; got != want {
		t.Fatalf("cost basis=%s want %s", got, want)
	}
	if row.PnLUSD == nil {
		t.Fatalf("matched row must carry pnl")
	}
}
