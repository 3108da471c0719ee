package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/warp/cashledger/ledger"
)

// historyCmd prints an account's movements with their running balance.
type historyCmd struct {
	account string
	from    string
	to      string
	limit   int
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "display an account's movements with running balance" }
func (*historyCmd) Usage() string {
	return `ledgerctl history -a <account> [-from <date>] [-to <date>] [-n <rows>]

  Displays movements newest first, each with the account balance right after it.
  Dates accept YYYY-MM-DD, DD/MM/YYYY and DD-MM-YYYY.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account name or id")
	f.StringVar(&c.from, "from", "", "First day to show (inclusive)")
	f.StringVar(&c.to, "to", "", "Last day to show (inclusive)")
	f.IntVar(&c.limit, "n", 50, "Maximum rows to show, 0 for all")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := parsePeriod(c.from, c.to)
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
	rows, err := a.balances.History(ctx, acc.ID, period)
	if err != nil {
		fail("Error computing history: %v", err)
		return subcommands.ExitFailure
	}
	if c.limit > 0 && len(rows) > c.limit {
		rows = rows[:c.limit]
	}

	printMarkdown(renderHistory(acc, rows))
	return subcommands.ExitSuccess
}

func renderHistory(acc ledger.Account, rows []ledger.BalanceRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s (%s)\n\n", cell(acc.Name), acc.Currency)
	if len(rows) == 0 {
		b.WriteString("No movements.\n")
		return b.String()
	}
	b.WriteString("| Date | # | Location | Category | Description | Income | Expense | Balance |\n")
	b.WriteString("|---|---:|---|---|---|---:|---:|---:|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s | %s |\n",
			r.Date, r.ID, cell(r.LocationName), cell(r.CategoryName), cell(r.Description),
			blankZero(r.Income), blankZero(r.Expense), ledger.FormatAmount(r.RunningBalance))
	}
	return b.String()
}

// parsePeriod reads optional bounds typed by the operator.
func parsePeriod(from, to string) (ledger.Period, error) {
	var p ledger.Period
	var err error
	if from != "" {
		if p.From, err = ledger.ParseDate(from); err != nil {
			return p, fmt.Errorf("from: %w", err)
		}
	}
	if to != "" {
		if p.To, err = ledger.ParseDate(to); err != nil {
			return p, fmt.Errorf("to: %w", err)
		}
	}
	return p, p.Validate()
}

func blankZero(d decimal.Decimal) string {
	if d.IsZero() {
		return ""
	}
	return ledger.FormatAmount(d)
}
