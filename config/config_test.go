package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir(), nil)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.True(t, cfg.Server.SecureCookies)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 20*time.Second, cfg.Events.HeartbeatInterval)
	assert.Equal(t, 15, cfg.Tickers.SamplingAttempts)
	assert.Equal(t, 10, cfg.Tickers.UniquenessAttempts)
	assert.Equal(t, 24*time.Hour, cfg.Tickers.ActiveWindow)
	assert.Equal(t, 3, cfg.Names.MinLength)
	assert.Equal(t, 15, cfg.Names.MaxLength)
}

func TestFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	yaml := "server:\n  http_address: \":9000\"\ndatabase:\n  driver: memory\nevents:\n  heartbeat_interval: 5s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("BOOMBERG_TICKERS_SAMPLING_ATTEMPTS", "30")

	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.Bool("verbose", false, "")
	require.NoError(t, fs.Parse([]string{"--verbose"}))

	cfg, err := LoadConfig(dir, fs)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.HTTPAddress)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 5*time.Second, cfg.Events.HeartbeatInterval)
	assert.Equal(t, 30, cfg.Tickers.SamplingAttempts)
	assert.True(t, cfg.Verbose)
}

func TestValidation(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("database:\n  driver: oracle\n"), 0o600))

	_, err := LoadConfig(dir, nil)
	assert.ErrorContains(t, err, "database.driver")
}
