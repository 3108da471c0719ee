package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/warp/cashledger/ledger"
)

// seedCmd loads the default catalog into an empty database.
type seedCmd struct{}

func (*seedCmd) Name() string     { return "seed" }
func (*seedCmd) Synopsis() string { return "load the default accounts, locations and categories" }
func (*seedCmd) Usage() string {
	return `ledgerctl seed

  Loads the default catalog. Does nothing when any account or location exists.
`
}

func (*seedCmd) SetFlags(*flag.FlagSet) {}

func (*seedCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fail("Error opening ledger: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	res, err := ledger.SeedDefaults(ctx, a.catalog)
	if err != nil {
		fail("Error seeding catalog: %v", err)
		return subcommands.ExitFailure
	}
	if res.Skipped {
		fmt.Println("Catalog is not empty, nothing seeded.")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Seeded %d accounts, %d locations and %d categories.\n", res.Accounts, res.Locations, res.Categories)
	return subcommands.ExitSuccess
}
