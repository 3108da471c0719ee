// Command ledgerctl is the operator CLI of the cash ledger. It works directly
// on the SQLite database used by the server.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&balancesCmd{}, "reports")
	commander.Register(&historyCmd{}, "reports")
	commander.Register(&summaryCmd{}, "reports")
	commander.Register(&reconcileCmd{}, "reports")

	commander.Register(&importCmd{}, "entry")
	commander.Register(&favoritesCmd{}, "entry")

	commander.Register(&seedCmd{}, "catalog")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}
