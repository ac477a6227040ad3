package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	// An explicitly named file that does not exist is an error.
	require.Error(t, err)

	cfg = Default()
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "privascan", cfg.Logger.ServiceName)
	assert.Equal(t, "trufflehog3", cfg.Scanners.SecretScannerA.Binary)
	assert.Equal(t, "gitleaks", cfg.Scanners.SecretScannerB.Binary)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.GitClone)
	assert.Equal(t, 30*time.Second, cfg.Timeouts.HTTPProbe)
	assert.Empty(t, cfg.Workspace.TempRoot)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "privascan.yaml")
	yaml := `
logger:
  level: debug
  format: json
scanners:
  secret_scanner_a:
    binary: /opt/bin/trufflehog3
mobile_service:
  base_url: http://analyzer.internal:8000
  api_key: secret
scan_timeouts:
  git_clone: 45s
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
	assert.Equal(t, "/opt/bin/trufflehog3", cfg.Scanners.SecretScannerA.Binary)
	assert.Equal(t, "http://analyzer.internal:8000", cfg.Mobile.BaseURL)
	assert.Equal(t, "secret", cfg.Mobile.APIKey)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.GitClone)
	// Untouched options keep their defaults.
	assert.Equal(t, "gitleaks", cfg.Scanners.SecretScannerB.Binary)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PRIVASCAN_LOGGER_LEVEL", "warn")
	t.Setenv("PRIVASCAN_MOBILE_SERVICE_BASE_URL", "http://localhost:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logger.Level)
	assert.Equal(t, "http://localhost:9000", cfg.Mobile.BaseURL)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [not: a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestExpandPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := Default()
	cfg.Workspace.TempRoot = "~/scans"
	require.NoError(t, cfg.expandPaths())
	assert.Equal(t, filepath.Join(home, "scans"), cfg.Workspace.TempRoot)
}
