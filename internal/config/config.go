// Package config loads bosun configuration from file and environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Storage StorageConfig `mapstructure:"storage"`
	Ports   PortsConfig   `mapstructure:"ports"`
	Network NetworkConfig `mapstructure:"network"`
	Health  HealthConfig  `mapstructure:"health"`
	Docker  DockerConfig  `mapstructure:"docker"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Log     LogConfig     `mapstructure:"log"`
}

// StorageConfig holds volume directory configuration.
type StorageConfig struct {
	// BaseDir is the root under which per-entry volume directories are
	// created. "~" expands to the user's home directory.
	BaseDir string `mapstructure:"base_dir"`
}

// PortsConfig holds the host port scan range.
type PortsConfig struct {
	Start int `mapstructure:"start"`
	End   int `mapstructure:"end"`
}

// NetworkConfig holds network naming configuration.
type NetworkConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// HealthConfig holds health verifier configuration.
type HealthConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// CatalogConfig holds catalog file configuration.
type CatalogConfig struct {
	// Path is an optional catalog file merged over the builtin catalog.
	Path string `mapstructure:"path"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("storage.base_dir", "~/media")
	v.SetDefault("ports.start", 8000)
	v.SetDefault("ports.end", 9000)
	v.SetDefault("network.prefix", "bosun")
	v.SetDefault("health.poll_interval", "2s")
	v.SetDefault("health.timeout", "60s")
	v.SetDefault("health.stop_timeout", "10s")
	v.SetDefault("docker.host", "")
	v.SetDefault("catalog.path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified and is invalid
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("BOSUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	expanded, err := expandHome(cfg.Storage.BaseDir)
	if err != nil {
		return nil, err
	}
	cfg.Storage.BaseDir = expanded

	return &cfg, nil
}

// expandHome resolves a leading "~" to the user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
func SetupLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
