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

// reconcileCmd compares the computed balance with a statement balance.
type reconcileCmd struct {
	account  string
	expected string
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "compare an account balance with a statement balance" }
func (*reconcileCmd) Usage() string {
	return `ledgerctl reconcile -a <account> -expected <amount>

  Compares the balance computed from the ledger with the balance reported by
  the bank or counted in the till. Exits with status 1 when they differ by
  one cent or more.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.account, "a", "", "Account name or id")
	f.StringVar(&c.expected, "expected", "", "Balance reported by the statement")
}

func (c *reconcileCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	expected, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(c.expected), ",", ""))
	if err != nil {
		fail("Error parsing -expected %q: %v", c.expected, err)
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
	rec, err := a.analytics.Reconcile(ctx, acc.ID, expected)
	if err != nil {
		fail("Error reconciling: %v", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderReconciliation(acc, rec))
	if !rec.Matches {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func renderReconciliation(acc ledger.Account, rec ledger.Reconciliation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Reconciliation of %s\n\n", cell(acc.Name))
	b.WriteString("| | Amount |\n|---|---:|\n")
	fmt.Fprintf(&b, "| Ledger | %s |\n", ledger.FormatAmount(rec.SystemBalance))
	fmt.Fprintf(&b, "| Statement | %s |\n", rec.ExpectedBalance.String())
	fmt.Fprintf(&b, "| Difference | %s |\n", rec.Difference.String())
	if rec.Matches {
		b.WriteString("\nBalances match.\n")
	} else {
		b.WriteString("\n**Balances do not match.**\n")
	}
	return b.String()
}
