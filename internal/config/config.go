// Package config loads garagebook settings with viper.
// Precedence: defaults < config file < GARAGEBOOK_* env < bound flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GARAGEBOOK_DATA_DIR.
const EnvPrefix = "GARAGEBOOK"

// Config holds all configuration for the application
type Config struct {
	DataDir     string            `mapstructure:"data_dir" validate:"required"`
	FileName    string            `mapstructure:"file_name" validate:"required"`
	HandleStore HandleStoreConfig `mapstructure:"handle_store"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Watch       WatchConfig       `mapstructure:"watch"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// HandleStoreConfig selects where the last file handle is remembered.
type HandleStoreConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite file memory"`
	// Path defaults to a location under DataDir.
	Path string `mapstructure:"path"`
}

// PermissionsConfig controls permission prompts on the local host.
type PermissionsConfig struct {
	AutoGrant bool `mapstructure:"auto_grant"`
}

// WatchConfig controls the data file watcher.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=console json"`
	Output     string `mapstructure:"output" validate:"oneof=stdout stderr file"`
	Filename   string `mapstructure:"filename" validate:"required_if=Output file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
}

// New returns a viper instance with defaults and env binding applied.
// Callers may bind flags to it before Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("file_name", "mechanic-shop-data.json")

	v.SetDefault("handle_store.driver", "sqlite")
	v.SetDefault("handle_store.path", "")

	v.SetDefault("permissions.auto_grant", false)

	v.SetDefault("watch.enabled", true)
	v.SetDefault("watch.debounce", "250ms")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output", "stderr")
	v.SetDefault("logger.filename", "")
	v.SetDefault("logger.max_size_mb", 10)
	v.SetDefault("logger.max_backups", 3)
}

// DefaultDataDir is the per-user config directory, or ".garagebook".
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "garagebook")
	}
	return ".garagebook"
}

// Load reads configFile, or config.yaml in the data directory when
// configFile is empty, and validates the result.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(v.GetString("data_dir"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	return validator.New().Struct(cfg)
}

// HandleStorePath is the configured store path or the driver's default
// location under DataDir.
func (c *Config) HandleStorePath() string {
	if c.HandleStore.Path != "" {
		return c.HandleStore.Path
	}
	switch c.HandleStore.Driver {
	case "file":
		return filepath.Join(c.DataDir, "handles")
	default:
		return filepath.Join(c.DataDir, "handles.db")
	}
}
