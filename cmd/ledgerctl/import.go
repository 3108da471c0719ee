package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/subcommands"
	"go.uber.org/zap"

	"github.com/warp/cashledger/ledger"
)

// importCmd bulk-enters movements from a CSV file, one row per movement.
type importCmd struct {
	actor  string
	dryRun bool
}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "bulk-enter movements from a CSV file" }
func (*importCmd) Usage() string {
	return `ledgerctl import -actor <name> [-dry-run] <file.csv>

  Commits every row of the CSV file as a movement. The first line is a header
  naming the columns; accepted columns are:

    date, account, location, category, document, responsible,
    description, income, expense

  account, location and category take either a name or an id. Categories
  are looked up within the row's location. Rows with nothing filled in
  besides the date are skipped. Each valid row is committed on its own;
  rejected rows are listed with their line number and do not stop the import.
`
}

func (c *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.actor, "actor", os.Getenv("USER"), "Who is entering the movements")
	f.BoolVar(&c.dryRun, "dry-run", false, "Only parse the file and resolve names")
}

func (c *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fail("Error: exactly one CSV file is required")
		return subcommands.ExitUsageError
	}
	if strings.TrimSpace(c.actor) == "" {
		fail("Error: -actor is required")
		return subcommands.ExitUsageError
	}

	file, err := os.Open(f.Arg(0))
	if err != nil {
		fail("Error opening %q: %v", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	a, err := openApp()
	if err != nil {
		fail("Error opening ledger: %v", err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	idx, err := loadNameIndex(ctx, a.catalog)
	if err != nil {
		fail("Error loading catalog: %v", err)
		return subcommands.ExitFailure
	}
	drafts, problems, err := readDrafts(file, idx)
	if err != nil {
		fail("Error reading %q: %v", f.Arg(0), err)
		return subcommands.ExitFailure
	}
	if len(problems) > 0 {
		for _, p := range problems {
			fail("%s", p)
		}
		fail("Nothing imported: fix the names above first.")
		return subcommands.ExitFailure
	}
	if c.dryRun {
		fmt.Printf("%d rows read, all names resolved.\n", len(drafts))
		return subcommands.ExitSuccess
	}

	res, err := a.batch.Commit(ctx, drafts, c.actor)
	printMarkdown(renderBatch(res))
	if err != nil {
		a.logger.Error("import aborted", zap.Error(err))
		fail("Import aborted after %d rows: %v", len(res.Committed), err)
		return subcommands.ExitFailure
	}
	if len(res.Failed) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func renderBatch(res ledger.BatchResult) string {
	var b strings.Builder
	b.WriteString("# Import\n\n")
	fmt.Fprintf(&b, "- committed: %d\n- rejected: %d\n- skipped (empty): %d\n", len(res.Committed), len(res.Failed), res.Skipped)
	if len(res.Failed) == 0 {
		return b.String()
	}
	b.WriteString("\n| Line | Field | Problem |\n|---:|---|---|\n")
	for _, f := range res.Failed {
		for _, fe := range f.Fields {
			// +1 for the header line
			fmt.Fprintf(&b, "| %d | %s | %s |\n", f.Row+1, fe.Field, cell(fe.Message))
		}
	}
	return b.String()
}

// =============================================================================
// CSV
// =============================================================================

var csvColumns = map[string]bool{
	"date": true, "account": true, "location": true, "category": true, "document": true,
	"responsible": true, "description": true, "income": true, "expense": true,
}

// nameIndex resolves catalog names, inactive rows included so the ledger can
// report them as inactive rather than unknown.
type nameIndex struct {
	accounts   map[string]ledger.AccountID
	locations  map[string]ledger.LocationID
	categories map[ledger.LocationID]map[string]ledger.CategoryID
}

func loadNameIndex(ctx context.Context, c *ledger.Catalog) (nameIndex, error) {
	idx := nameIndex{
		accounts:   make(map[string]ledger.AccountID),
		locations:  make(map[string]ledger.LocationID),
		categories: make(map[ledger.LocationID]map[string]ledger.CategoryID),
	}
	accounts, err := c.Accounts(ctx, true)
	if err != nil {
		return idx, err
	}
	for _, a := range accounts {
		idx.accounts[strings.ToLower(a.Name)] = a.ID
	}
	locations, err := c.Locations(ctx, true)
	if err != nil {
		return idx, err
	}
	for _, l := range locations {
		idx.locations[strings.ToLower(l.Name)] = l.ID
	}
	categories, err := c.Categories(ctx, 0, true)
	if err != nil {
		return idx, err
	}
	for _, cat := range categories {
		if idx.categories[cat.LocationID] == nil {
			idx.categories[cat.LocationID] = make(map[string]ledger.CategoryID)
		}
		idx.categories[cat.LocationID][strings.ToLower(cat.Name)] = cat.ID
	}
	return idx, nil
}

// readDrafts turns CSV rows into drafts. Names that do not resolve are
// returned as problems, one line each; they never abort the read.
func readDrafts(r io.Reader, idx nameIndex) ([]ledger.Draft, []string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if !csvColumns[name] {
			return nil, nil, fmt.Errorf("unknown column %q", h)
		}
		col[name] = i
	}

	var (
		drafts   []ledger.Draft
		problems []string
	)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		get := func(name string) string {
			if i, ok := col[name]; ok && i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}

		d := ledger.Draft{
			Date:        get("date"),
			Document:    get("document"),
			Responsible: get("responsible"),
			Description: get("description"),
			Income:      get("income"),
			Expense:     get("expense"),
		}
		if v := get("account"); v != "" {
			id, ok := resolveID(v, idx.accounts)
			if !ok {
				problems = append(problems, fmt.Sprintf("line %d: unknown account %q", line, v))
			}
			d.AccountID = ledger.AccountID(id)
		}
		if v := get("location"); v != "" {
			id, ok := resolveID(v, idx.locations)
			if !ok {
				problems = append(problems, fmt.Sprintf("line %d: unknown location %q", line, v))
			}
			d.LocationID = ledger.LocationID(id)
		}
		if v := get("category"); v != "" {
			id, ok := resolveID(v, idx.categories[d.LocationID])
			if !ok {
				problems = append(problems, fmt.Sprintf("line %d: unknown category %q for this location", line, v))
			}
			d.CategoryID = ledger.CategoryID(id)
		}
		drafts = append(drafts, d)
	}
	return drafts, problems, nil
}

// resolveID accepts a numeric id as is, or looks a name up case-insensitively.
func resolveID[T ~int64](v string, byName map[string]T) (int64, bool) {
	if id, err := strconv.ParseInt(v, 10, 64); err == nil {
		return id, true
	}
	id, ok := byName[strings.ToLower(v)]
	return int64(id), ok
}
