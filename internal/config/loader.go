package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader reads configuration from file and environment.
type Loader struct {
	configPath string
	envPrefix  string
}

// NewLoader creates a config loader. An empty configPath searches the
// default locations.
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
		envPrefix:  "GATHERSYNC",
	}
}

// Load merges defaults, config file, and GATHERSYNC_* environment
// variables, then validates the result.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	if l.configPath != "" {
		v.SetConfigFile(l.configPath)
	} else {
		v.SetConfigName("gathersync")
		v.AddConfigPath(".")
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "gathersync"))
			v.AddConfigPath(filepath.Join(homeDir, ".gathersync"))
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		// An explicit path must exist; otherwise a missing file just means
		// defaults plus environment.
		var notFound viper.ConfigFileNotFoundError
		if l.configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("api.base_url", def.API.BaseURL)
	v.SetDefault("api.timeout", def.API.Timeout)
	v.SetDefault("api.max_retries", def.API.MaxRetries)
	v.SetDefault("api.retry_delay", def.API.RetryDelay)
	v.SetDefault("api.user_agent", def.API.UserAgent)
	v.SetDefault("api.probe_url", def.API.ProbeURL)
	v.SetDefault("auth.token_file", def.Auth.TokenFile)
	v.SetDefault("storage.data_dir", def.Storage.DataDir)
	v.SetDefault("storage.database_file", def.Storage.DatabaseFile)
	v.SetDefault("storage.backup_dir", def.Storage.BackupDir)
	v.SetDefault("sync.retry_ceiling", def.Sync.RetryCeiling)
	v.SetDefault("sync.probe_interval", def.Sync.ProbeInterval)
	v.SetDefault("sync.watch_changes", def.Sync.WatchChanges)
	v.SetDefault("sync.device_name", def.Sync.DeviceName)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)
	v.SetDefault("log.file", def.Log.File)
}
