package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// API configuration for the cloud event store.
	API APIConfig `json:"api" mapstructure:"api"`

	// Authentication settings.
	Auth AuthConfig `json:"auth" mapstructure:"auth"`

	// Local storage paths.
	Storage StorageConfig `json:"storage" mapstructure:"storage"`

	// Sync behavior.
	Sync SyncConfig `json:"sync" mapstructure:"sync"`

	// Logging.
	Log LogConfig `json:"log" mapstructure:"log"`
}

// APIConfig for cloud communication.
type APIConfig struct {
	BaseURL    string        `json:"base_url" mapstructure:"base_url"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max_retries" mapstructure:"max_retries"`
	RetryDelay time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
	UserAgent  string        `json:"user_agent" mapstructure:"user_agent"`

	// ProbeURL is the connectivity check endpoint. It must answer quickly
	// with 204; a connected-but-captive network fails the probe and the
	// device is treated as offline.
	ProbeURL string `json:"probe_url" mapstructure:"probe_url"`
}

// AuthConfig for authentication settings.
type AuthConfig struct {
	// TokenFile persists the bearer token between runs.
	TokenFile string `json:"token_file" mapstructure:"token_file"`
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir      string `json:"data_dir" mapstructure:"data_dir"`
	DatabaseFile string `json:"database_file" mapstructure:"database_file"`
	BackupDir    string `json:"backup_dir" mapstructure:"backup_dir"`
}

// SyncConfig for synchronization behavior.
type SyncConfig struct {
	// RetryCeiling is the per-item retry limit before a queued mutation is
	// dropped and reported.
	RetryCeiling int `json:"retry_ceiling" mapstructure:"retry_ceiling"`

	// ProbeInterval is how often connectivity is re-checked. Probing only
	// tests reachability; it never triggers a blind full resync.
	ProbeInterval time.Duration `json:"probe_interval" mapstructure:"probe_interval"`

	// WatchChanges enables the websocket change feed that triggers
	// pull-merges when another device writes.
	WatchChanges bool `json:"watch_changes" mapstructure:"watch_changes"`

	// DeviceName identifies this device in remote requests.
	DeviceName string `json:"device_name" mapstructure:"device_name"`
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // text, json
	File   string `json:"file" mapstructure:"file"`     // empty = stdout
}

// Default returns config with sensible defaults.
func Default() *Config {
	dataDir := ".gathersync"

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "gathersync-device"
	}

	return &Config{
		API: APIConfig{
			BaseURL:    "https://api.gatherly.app",
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			RetryDelay: time.Second,
			UserAgent:  "gathersync/1.0",
			ProbeURL:   "https://api.gatherly.app/generate_204",
		},
		Auth: AuthConfig{
			TokenFile: filepath.Join(dataDir, "token.json"),
		},
		Storage: StorageConfig{
			DataDir:      dataDir,
			DatabaseFile: filepath.Join(dataDir, "events.db"),
			BackupDir:    filepath.Join(dataDir, "backups"),
		},
		Sync: SyncConfig{
			RetryCeiling:  3,
			ProbeInterval: 30 * time.Second,
			WatchChanges:  true,
			DeviceName:    hostname,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}

	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be positive")
	}

	if c.Sync.RetryCeiling < 0 {
		return errors.New("sync.retry_ceiling cannot be negative")
	}

	if c.Storage.DatabaseFile == "" {
		return errors.New("storage.database_file is required")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("invalid log format: %s", c.Log.Format)
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDir,
		filepath.Dir(c.Storage.DatabaseFile),
		c.Storage.BackupDir,
		filepath.Dir(c.Auth.TokenFile),
	}

	if c.Log.File != "" {
		dirs = append(dirs, filepath.Dir(c.Log.File))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
