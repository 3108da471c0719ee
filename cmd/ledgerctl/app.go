package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/warp/cashledger/config"
	"github.com/warp/cashledger/ledger"
	"github.com/warp/cashledger/logging"
	"github.com/warp/cashledger/store/sqlite"
)

// as a CLI application, it has a very short lived lifecycle, so global flags are fine.

var (
	configFiles = flag.String("config", "ledger.toml", "Comma-separated TOML config files")
	dbPath      = flag.String("db", "", "SQLite database path (overrides config)")
	plain       = flag.Bool("plain", false, "Print raw markdown instead of rendering it")
	verbose     = flag.Bool("v", false, "Log at the configured level instead of warnings only")
)

// app holds the ledger services for the lifetime of one command.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *sqlite.Store
	catalog   *ledger.Catalog
	service   *ledger.Service
	balances  *ledger.BalanceEngine
	analytics *ledger.Analytics
	batch     *ledger.BatchCoordinator
}

func openApp() (*app, error) {
	cfg, err := config.Load(strings.Split(*configFiles, ",")...)
	if err != nil {
		return nil, err
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}
	logCfg := cfg.Logging
	if !*verbose {
		logCfg.Level = "warn"
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", cfg.Database.Path, err)
	}

	svc := ledger.NewService(store, logger, nil)
	balances := ledger.NewBalanceEngine(store)
	return &app{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		catalog:   ledger.NewCatalog(store, cfg.Ledger.DefaultCurrency),
		service:   svc,
		balances:  balances,
		analytics: ledger.NewAnalytics(balances, nil),
		batch:     ledger.NewBatchCoordinator(svc),
	}, nil
}

func (a *app) Close() {
	a.logger.Sync()
	a.store.Close()
}

// resolveAccount accepts an account id or a case-insensitive account name.
func (a *app) resolveAccount(ctx context.Context, ref string) (ledger.Account, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ledger.Account{}, fmt.Errorf("an account is required (-a)")
	}
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return a.catalog.GetAccount(ctx, ledger.AccountID(id))
	}
	accounts, err := a.catalog.Accounts(ctx, true)
	if err != nil {
		return ledger.Account{}, err
	}
	for _, acc := range accounts {
		if strings.EqualFold(acc.Name, ref) {
			return acc, nil
		}
	}
	return ledger.Account{}, fmt.Errorf("account %q not found", ref)
}

// printMarkdown renders md for the terminal, or prints it as is with -plain.
func printMarkdown(md string) {
	if *plain {
		fmt.Print(md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err == nil {
		var out string
		if out, err = r.Render(md); err == nil {
			fmt.Print(out)
			return
		}
	}
	fmt.Print(md)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
}

// cell escapes text for a markdown table cell.
func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
