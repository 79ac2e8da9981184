package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"fifopnl/internal/validator"
)

type validateCmd struct {
	version int
	strict  bool
	report  bool
}

func (*validateCmd) Name() string { return "validate" }
func (*validateCmd) Synopsis() string {
	return "check correctness invariants over a computed allocation version"
}
func (*validateCmd) Usage() string {
	return `fifopnl validate --version <int> [--strict] [--report]

  Runs the unmatched-sell, completeness, duplicate, and temporal checks
  against a committed version. Exits 0 only when the version is valid; with
  --strict, warnings also fail validation. --report prints the per-symbol
  health report as well.
`
}

func (c *validateCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.version, "version", 0, "Allocation version to validate (required).")
	f.BoolVar(&c.strict, "strict", false, "Treat warnings as validation failures.")
	f.BoolVar(&c.report, "report", false, "Also print the health report.")
}

func (c *validateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.version <= 0 {
		fmt.Fprintln(os.Stderr, "validate: --version is required and must be positive")
		return subcommands.ExitUsageError
	}

	rt, err := bootstrap()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer rt.Close()

	res, err := rt.Validator.ValidateVersion(ctx, c.version, c.strict)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	printValidationResult(res)

	if c.report {
		report, err := rt.Validator.GenerateHealthReport(ctx, c.version)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		printHealthReport(report)
	}

	if !res.Valid {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func printValidationResult(res *validator.ValidationResult) {
	verdict := "VALID"
	if !res.Valid {
		verdict = "INVALID"
	}
	fmt.Printf("version %d: %s\n", res.AllocationVersion, verdict)
	fmt.Printf("  allocations:      %d\n", res.TotalAllocations)
	fmt.Printf("  ledger buys:      %d\n", res.TotalBuys)
	fmt.Printf("  ledger sells:     %d\n", res.TotalSells)
	fmt.Printf("  unmatched sells:  %d\n", res.UnmatchedSells)
	fmt.Printf("  under-allocated:  %d\n", res.UnderAllocatedSells)
	fmt.Printf("  over-allocated:   %d\n", res.OverAllocatedSells)
	fmt.Printf("  duplicates:       %d\n", res.DuplicateAllocations)
	fmt.Printf("  total pnl:        %s USD\n", res.TotalPnLUSD.StringFixed(2))
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	for _, e := range res.Errors {
		fmt.Printf("  error: %s\n", e)
	}
}

func printHealthReport(report *validator.HealthReport) {
	fmt.Printf("health report for version %d (generated %s)\n",
		report.AllocationVersion, report.GeneratedAt.Format("2006-01-02 15:04:05"))
	for _, s := range report.Symbols {
		fmt.Printf("  %-12s allocations=%-5d matched=%-5d unmatched=%-4d pnl=%s USD\n",
			s.Symbol, s.Allocations, s.Matched, s.Unmatched, s.PnLUSD.StringFixed(2))
	}
	for _, d := range report.Discrepancies {
		fmt.Printf("  discrepancy [%s] sell=%s %s size=%s allocated=%s\n",
			d.Kind, d.SellOrderID, d.Symbol, d.SellSize.String(), d.AllocatedTotal.String())
	}
	for _, b := range report.OverAllocatedBuys {
		fmt.Printf("  over-allocated buy=%s %s size=%s allocated=%s\n",
			b.BuyOrderID, b.Symbol, b.BuySize.String(), b.AllocatedTotal.String())
	}
	for _, u := range report.UnmatchedSells {
		fmt.Printf("  unmatched sell=%s %s size=%s\n", u.SellOrderID, u.Symbol, u.UnmatchedSize.String())
	}
	fmt.Printf("  pending review items: %d\n", report.PendingReviewItems)
}
