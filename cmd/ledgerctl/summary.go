package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"

	"github.com/warp/cashledger/ledger"
)

// summaryCmd prints period totals, optionally broken down by location.
type summaryCmd struct {
	account    string
	month      string
	from       string
	to         string
	byLocation bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "display income, expense and balance over a period" }
func (*summaryCmd) Usage() string {
	return `ledgerctl summary -a <account> [-m YYYY-MM | -from <date> -to <date>] [-by-location]

  Displays total income, total expense and net balance of an account over a
  calendar month (-m) or an explicit window. Without any period the whole
  history is summarized. -by-location breaks the totals down per location.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account name or id")
	f.StringVar(&c.month, "m", "", "Calendar month, YYYY-MM")
	f.StringVar(&c.from, "from", "", "First day (inclusive)")
	f.StringVar(&c.to, "to", "", "Last day (inclusive)")
	f.BoolVar(&c.byLocation, "by-location", false, "Break totals down by location")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := c.period()
	if err != nil {
		fail("Error parsing period: %v", err)
		return subcommands.ExitUsageError
	}

	a, err := openApp()
	if err != nil {
		fail("Error opening ledger: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	acc, err := a.resolveAccount(ctx, c.account)
	if err != nil {
		fail("Error: %v", err)
		return subcommands.ExitUsageError
	}

	var md string
	if c.byLocation {
		totals, err := a.balances.LocationSummary(ctx, acc.ID, period)
		if err != nil {
			fail("Error computing summary: %v", err)
			return subcommands.ExitFailure
		}
		md = renderLocationSummary(acc, period, totals)
	} else {
		s, err := a.balances.PeriodSummary(ctx, acc.ID, period)
		if err != nil {
			fail("Error computing summary: %v", err)
			return subcommands.ExitFailure
		}
		md = renderSummary(acc, s)
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

func (c *summaryCmd) period() (ledger.Period, error) {
	if c.month == "" {
		return parsePeriod(c.from, c.to)
	}
	if c.from != "" || c.to != "" {
		return ledger.Period{}, fmt.Errorf("-m cannot be combined with -from/-to")
	}
	t, err := time.Parse("2006-01", c.month)
	if err != nil {
		return ledger.Period{}, fmt.Errorf("month must be YYYY-MM")
	}
	return ledger.MonthPeriod(t.Year(), t.Month()), nil
}

func periodLabel(p ledger.Period) string {
	switch {
	case p.From.IsZero() && p.To.IsZero():
		return "all time"
	case p.From.IsZero():
		return "up to " + p.To.String()
	case p.To.IsZero():
		return "since " + p.From.String()
	}
	return p.From.String() + " to " + p.To.String()
}

func renderSummary(acc ledger.Account, s ledger.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s, %s\n\n", cell(acc.Name), periodLabel(s.Period))
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Income | %s |\n", ledger.FormatMoney(s.TotalIncome, acc.Currency))
	fmt.Fprintf(&b, "| Expense | %s |\n", ledger.FormatMoney(s.TotalExpense, acc.Currency))
	fmt.Fprintf(&b, "| **Balance** | **%s** |\n", ledger.FormatMoney(s.Balance, acc.Currency))
	fmt.Fprintf(&b, "\n%d movements.\n", s.Count)
	return b.String()
}

func renderLocationSummary(acc ledger.Account, p ledger.Period, totals []ledger.LocationTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s by location, %s\n\n", cell(acc.Name), periodLabel(p))
	if len(totals) == 0 {
		b.WriteString("No movements.\n")
		return b.String()
	}
	b.WriteString("| Location | Income | Expense | Balance | Movements |\n|---|---:|---:|---:|---:|\n")
	for _, t := range totals {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d |\n", cell(t.LocationName),
			ledger.FormatAmount(t.TotalIncome), ledger.FormatAmount(t.TotalExpense),
			ledger.FormatAmount(t.Balance), t.Count)
	}
	return b.String()
}
