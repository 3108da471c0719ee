package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/cashledger/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_DefaultsWhenNoFiles(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "PEN", cfg.Ledger.DefaultCurrency)
	assert.Equal(t, 10, cfg.Ledger.FavoritesLimit)
	assert.Equal(t, "2", cfg.Ledger.GetAnomalyThreshold().String())
	assert.Equal(t, 24*time.Hour, cfg.Maintenance.GetRebuildInterval())
}

func TestLoad_LaterFilesOverrideEarlier(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.toml", `
environment = "production"

[server]
port = 9000
read_timeout = "5s"

[ledger]
default_currency = "USD"
anomaly_threshold = "3"
`)
	local := writeFile(t, dir, "local.toml", `
[server]
port = 9100
`)

	cfg, err := config.Load(base, local)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.GetReadTimeout())
	assert.Equal(t, "USD", cfg.Ledger.DefaultCurrency)
	assert.Equal(t, "3", cfg.Ledger.GetAnomalyThreshold().String())
	// untouched sections keep defaults
	assert.Equal(t, "./data/ledger.db", cfg.Database.Path)
}

func TestLoad_EnvOverridesFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "ledger.toml", "[server]\nport = 9000\n")
	t.Setenv("LEDGER_PORT", "7070")
	t.Setenv("LEDGER_DB_PATH", "/tmp/x.db")
	t.Setenv("LEDGER_SEED_DEFAULTS", "true")
	t.Setenv("LEDGER_LOG_FORMAT", "json")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/x.db", cfg.Database.Path)
	assert.True(t, cfg.Ledger.SeedDefaults)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.toml", "[server\nport = ")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate_RejectsBadLogFormat(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.Logging.Format = "xml"
	assert.Error(t, cfg.Validate())
}
