/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cash ledger HTTP server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, TOML files, .env, LEDGER_* variables)
  2. Build the zap logger
  3. Open the SQLite store and run migrations
  4. Seed the default catalog when enabled and the catalog is empty
  5. Create API handler and router
  6. Start the favorites maintenance scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Comma-separated TOML files, later files override earlier ones
           (default: ledger.toml)
  -port    HTTP server port, overrides the configuration when set
  -db      SQLite database path, overrides the configuration when set
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection

EXAMPLES:
  ./server -config=ledger.toml,ledger.local.toml
  LEDGER_DB_PATH=":memory:" LEDGER_SEED_DEFAULTS=true ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Configuration sources
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/cashledger/api"
	"github.com/warp/cashledger/config"
	"github.com/warp/cashledger/ledger"
	"github.com/warp/cashledger/logging"
	"github.com/warp/cashledger/store/sqlite"
)

func main() {
	// Flags
	configFiles := flag.String("config", "ledger.toml", "Comma-separated TOML config files")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(strings.Split(*configFiles, ",")...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	// Initialize store
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, logger, api.Options{
		DefaultCurrency:   cfg.Ledger.DefaultCurrency,
		FavoritesLimit:    cfg.Ledger.FavoritesLimit,
		ProjectionHorizon: cfg.Ledger.ProjectionHorizon,
		AnomalyWindowDays: cfg.Ledger.AnomalyWindow,
		AnomalyThreshold:  cfg.Ledger.GetAnomalyThreshold(),
	})

	if cfg.Ledger.SeedDefaults {
		res, err := ledger.SeedDefaults(context.Background(), handler.Catalog)
		if err != nil {
			return fmt.Errorf("seed default catalog: %w", err)
		}
		logger.Info("default catalog",
			zap.Bool("skipped", res.Skipped),
			zap.Int("accounts", res.Accounts),
			zap.Int("locations", res.Locations),
			zap.Int("categories", res.Categories))
	}

	scheduler := api.NewFavoritesScheduler(handler.Service, logger.Named("scheduler"))
	scheduler.Enabled = cfg.Maintenance.Enabled
	scheduler.Interval = cfg.Maintenance.GetRebuildInterval()
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, cfg.Server.CORSOrigins),
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
		IdleTimeout:  cfg.Server.GetIdleTimeout(),
	}

	// Start server in goroutine
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Database.Path),
			zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal or a listener failure
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-quit:
	}

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
