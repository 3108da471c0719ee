package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/warp/cashledger/ledger"
)

// balancesCmd prints the current balance of every active account.
type balancesCmd struct{}

func (*balancesCmd) Name() string     { return "balances" }
func (*balancesCmd) Synopsis() string { return "display the current balance of every active account" }
func (*balancesCmd) Usage() string {
	return `ledgerctl balances

  Displays the current balance of every active account, ordered by name.
`
}

func (*balancesCmd) SetFlags(*flag.FlagSet) {}

func (*balancesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fail("Error opening ledger: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	balances, err := a.balances.AllAccountBalances(ctx)
	if err != nil {
		fail("Error computing balances: %v", err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderBalances(balances))
	return subcommands.ExitSuccess
}

func renderBalances(balances []ledger.AccountBalance) string {
	var b strings.Builder
	b.WriteString("# Balances\n\n")
	if len(balances) == 0 {
		b.WriteString("No active accounts.\n")
		return b.String()
	}
	b.WriteString("| Account | Kind | Currency | Balance |\n|---|---|---|---:|\n")
	for _, ab := range balances {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			cell(ab.Account.Name), ab.Account.Kind, ab.Account.Currency,
			ledger.FormatMoney(ab.Balance, ab.Account.Currency))
	}
	return b.String()
}
