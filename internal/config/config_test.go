package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Ports.Start)
	assert.Equal(t, 9000, cfg.Ports.End)
	assert.Equal(t, "bosun", cfg.Network.Prefix)
	assert.Equal(t, 2*time.Second, cfg.Health.PollInterval)
	assert.Equal(t, 60*time.Second, cfg.Health.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Health.StopTimeout)
	assert.Equal(t, "info", cfg.Log.Level)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "media"), cfg.Storage.BaseDir)
}

func TestLoadConfig_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bosun.yaml")
	doc := `
storage:
  base_dir: /srv/media
ports:
  start: 10000
  end: 11000
health:
  timeout: 90s
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/media", cfg.Storage.BaseDir)
	assert.Equal(t, 10000, cfg.Ports.Start)
	assert.Equal(t, 11000, cfg.Ports.End)
	assert.Equal(t, 90*time.Second, cfg.Health.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Health.PollInterval)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bosun.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ports: ["), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("BOSUN_PORTS_START", "12000")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 12000, cfg.Ports.Start)
}

func TestLoadConfig_TildeExpansion(t *testing.T) {
	t.Setenv("BOSUN_STORAGE_BASE_DIR", "~/deployments")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "deployments"), cfg.Storage.BaseDir)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		cfg := &Config{Log: LogConfig{Level: level, Format: "text"}}
		assert.NotNil(t, SetupLogger(cfg), level)
	}
}

func TestSetupLogger_JSONFormat(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "info", Format: "json"}}
	assert.NotNil(t, SetupLogger(cfg))
}
