// Package config implements TOML configuration loading, validation, and
// platform path resolution for voicefit.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/voicefit/voicefit/internal/record"
)

// EnvConfigPath overrides the config file location when set.
const EnvConfigPath = "VOICEFIT_CONFIG"

// defaultTickInterval is the period between automatic full syncs.
const defaultTickInterval = 30 * time.Second

// Config is the top-level configuration structure.
type Config struct {
	Remote   RemoteConfig   `toml:"remote"`
	Database DatabaseConfig `toml:"database"`
	Sync     SyncConfig     `toml:"sync"`
	Logging  LoggingConfig  `toml:"logging"`
}

// RemoteConfig points at the cloud record store.
type RemoteConfig struct {
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	AuthURL string `toml:"auth_url"`
}

// DatabaseConfig locates the local SQLite database.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// SyncConfig controls the background sync engine.
type SyncConfig struct {
	TickInterval    string   `toml:"tick_interval"`
	Tables          []string `toml:"tables"`
	WatermarkColumn string   `toml:"watermark_column"`
}

// LoggingConfig controls log output behavior. When File is set, logs rotate
// via lumberjack at MaxSizeMB with MaxBackups retained files.
type LoggingConfig struct {
	Level      string `toml:"level"`  // debug, info, warn, error
	Format     string `toml:"format"` // text, json
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

// Default returns the built-in configuration: all six tables in declared
// order, a 30-second tick, and the updated_at download watermark.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: filepath.Join(DefaultDataDir(), "voicefit.db")},
		Sync: SyncConfig{
			TickInterval:    defaultTickInterval.String(),
			Tables:          record.Tables(),
			WatermarkColumn: "updated_at",
		},
		Logging: LoggingConfig{
			Level:      "warn",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads the config file at path (or the default location when path is
// empty), layering the file over Default(). A missing file yields defaults.
func Load(path string, logger *slog.Logger) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	cfg := Default()

	meta, err := toml.DecodeFile(path, cfg)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no config file, using defaults", slog.String("path", path))
		return cfg, nil
	}

	if err != nil {
		return nil, fmt.Errorf("config: decoding %s: %w", path, err)
	}

	for _, k := range meta.Undecoded() {
		logger.Warn("unknown config key", slog.String("key", k.String()))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return errors.New("config: remote.base_url is required")
	}

	if _, err := c.Sync.TickDuration(); err != nil {
		return err
	}

	switch c.Sync.WatermarkColumn {
	case "updated_at", "created_at":
	default:
		return fmt.Errorf("config: sync.watermark_column must be updated_at or created_at, got %q", c.Sync.WatermarkColumn)
	}

	known := record.Tables()
	for _, t := range c.Sync.Tables {
		if !slices.Contains(known, t) {
			return fmt.Errorf("config: unknown table %q in sync.tables", t)
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// TickDuration parses the tick interval.
func (s *SyncConfig) TickDuration() (time.Duration, error) {
	d, err := time.ParseDuration(s.TickInterval)
	if err != nil {
		return 0, fmt.Errorf("config: parsing sync.tick_interval %q: %w", s.TickInterval, err)
	}

	if d <= 0 {
		return 0, fmt.Errorf("config: sync.tick_interval must be positive, got %q", s.TickInterval)
	}

	return d, nil
}

// DefaultConfigPath returns the platform config file location.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}

	return filepath.Join(dir, "voicefit", "config.toml")
}

// DefaultDataDir returns the platform data directory for the database and
// session file.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "voicefit")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "voicefit")
}

// SessionPath returns the session file location next to the database.
func SessionPath() string {
	return filepath.Join(DefaultDataDir(), "session.json")
}
