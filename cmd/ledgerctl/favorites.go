package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"
)

// favoritesCmd lists, or rebuilds, the description autocomplete cache.
type favoritesCmd struct {
	limit   int
	rebuild bool
}

func (*favoritesCmd) Name() string     { return "favorites" }
func (*favoritesCmd) Synopsis() string { return "list or rebuild the most used descriptions" }
func (*favoritesCmd) Usage() string {
	return `ledgerctl favorites [-n <count>] [-rebuild]

  Lists the descriptions offered for autocomplete, most used first.
  -rebuild recomputes them from the movement history first.
`
}

func (c *favoritesCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "n", 0, "How many to list (default from config)")
	f.BoolVar(&c.rebuild, "rebuild", false, "Recompute from the movement history first")
}

func (c *favoritesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := openApp()
	if err != nil {
		fail("Error opening ledger: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	if c.rebuild {
		n, err := a.service.RebuildFavorites(ctx)
		if err != nil {
			fail("Error rebuilding favorites: %v", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("%d distinct descriptions.\n", n)
	}

	limit := c.limit
	if limit <= 0 {
		limit = a.cfg.Ledger.FavoritesLimit
	}
	favs, err := a.service.ListFavorites(ctx, limit)
	if err != nil {
		fail("Error listing favorites: %v", err)
		return subcommands.ExitFailure
	}

	var b strings.Builder
	b.WriteString("# Favorite descriptions\n\n")
	for i, f := range favs {
		fmt.Fprintf(&b, "%d. %s\n", i+1, f)
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
