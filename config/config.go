// Package config loads ledger configuration from TOML files, a .env file
// and LEDGER_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

// Config holds all configuration for the ledger.
type Config struct {
	Environment string            `toml:"environment"`
	Server      ServerConfig      `toml:"server"`
	Database    DatabaseConfig    `toml:"database"`
	Logging     LoggingConfig     `toml:"logging"`
	Ledger      LedgerConfig      `toml:"ledger"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string   `toml:"host"`
	Port         int      `toml:"port"`
	ReadTimeout  string   `toml:"read_timeout"`
	WriteTimeout string   `toml:"write_timeout"`
	IdleTimeout  string   `toml:"idle_timeout"`
	CORSOrigins  []string `toml:"cors_origins"`
}

func (c ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", c.Host, c.Port) }

func (c ServerConfig) GetReadTimeout() time.Duration  { return parseDuration(c.ReadTimeout, 15*time.Second) }
func (c ServerConfig) GetWriteTimeout() time.Duration { return parseDuration(c.WriteTimeout, 15*time.Second) }
func (c ServerConfig) GetIdleTimeout() time.Duration  { return parseDuration(c.IdleTimeout, 60*time.Second) }

type DatabaseConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // json or console
}

// LedgerConfig tunes the engine.
type LedgerConfig struct {
	DefaultCurrency   string `toml:"default_currency"`
	FavoritesLimit    int    `toml:"favorites_limit"`
	ProjectionHorizon int    `toml:"projection_horizon_days"`
	AnomalyWindow     int    `toml:"anomaly_window_days"`
	AnomalyThreshold  string `toml:"anomaly_threshold"` // standard deviations, decimal text
	SeedDefaults      bool   `toml:"seed_defaults"`
}

// GetAnomalyThreshold parses the threshold, falling back to 2.
func (c LedgerConfig) GetAnomalyThreshold() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.AnomalyThreshold))
	if err != nil || !d.IsPositive() {
		return decimal.NewFromInt(2)
	}
	return d
}

// MaintenanceConfig controls the background favorites rebuild.
type MaintenanceConfig struct {
	Enabled         bool   `toml:"enabled"`
	RebuildInterval string `toml:"rebuild_interval"`
}

func (c MaintenanceConfig) GetRebuildInterval() time.Duration {
	return parseDuration(c.RebuildInterval, 24*time.Hour)
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  "15s",
			WriteTimeout: "15s",
			IdleTimeout:  "60s",
			CORSOrigins:  []string{"*"},
		},
		Database: DatabaseConfig{Path: "./data/ledger.db"},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Ledger: LedgerConfig{
			DefaultCurrency:   "PEN",
			FavoritesLimit:    10,
			ProjectionHorizon: 30,
			AnomalyWindow:     90,
			AnomalyThreshold:  "2.0",
			SeedDefaults:      false,
		},
		Maintenance: MaintenanceConfig{
			Enabled:         true,
			RebuildInterval: "24h",
		},
	}
}

// Load builds the configuration: defaults, then each TOML file in order
// (missing files are skipped), then a .env file if present, then LEDGER_*
// environment variables.
func Load(paths ...string) (*Config, error) {
	cfg := NewDefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	// .env never overrides variables already set in the process.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LEDGER_ENV"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("LEDGER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("LEDGER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("LEDGER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LEDGER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LEDGER_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LEDGER_DEFAULT_CURRENCY"); v != "" {
		cfg.Ledger.DefaultCurrency = strings.ToUpper(v)
	}
	if v := os.Getenv("LEDGER_SEED_DEFAULTS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Ledger.SeedDefaults = b
		}
	}
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		return errors.New("database path is required")
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format %q (use json or console)", c.Logging.Format)
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
