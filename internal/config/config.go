package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cyp0633/libagenda/recurrence"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. AGENDA_STORAGE_DRIVER
const EnvPrefix = "AGENDA"

type Config struct {
	Listen     string           `mapstructure:"listen"`
	Timezone   string           `mapstructure:"timezone"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Recurrence RecurrenceConfig `mapstructure:"recurrence"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
	Feed       FeedConfig       `mapstructure:"feed"`
	Log        LogConfig        `mapstructure:"log"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory or sqlite
	Path   string `mapstructure:"path"`   // sqlite database file
}

type RecurrenceConfig struct {
	Horizon        time.Duration `mapstructure:"horizon"`
	MaxOccurrences int           `mapstructure:"max_occurrences"`
	Cache          CacheConfig   `mapstructure:"cache"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	TTL             time.Duration `mapstructure:"ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type SweepConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Schedule  string        `mapstructure:"schedule"`
	Retention time.Duration `mapstructure:"retention"`
}

type FeedConfig struct {
	Name string `mapstructure:"name"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("timezone", "Local")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "data/agenda.db")

	v.SetDefault("recurrence.horizon", recurrence.DefaultHorizon)
	v.SetDefault("recurrence.max_occurrences", recurrence.DefaultMaxOccurrences)
	v.SetDefault("recurrence.cache.enabled", true)
	v.SetDefault("recurrence.cache.ttl", recurrence.DefaultCacheConfig.TTL)
	v.SetDefault("recurrence.cache.max_entries", recurrence.DefaultCacheConfig.MaxEntries)
	v.SetDefault("recurrence.cache.cleanup_interval", recurrence.DefaultCacheConfig.CleanupInterval)

	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", "@every 12h")
	v.SetDefault("sweep.retention", 30*24*time.Hour)

	v.SetDefault("feed.name", "Agenda")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.console", false)
}

// Load reads the configuration. An explicit path must exist; without one,
// ./agenda.yaml is used when present and defaults otherwise. Environment
// variables override both.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("agenda")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values viper cannot type-check
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Recurrence.Horizon <= 0 {
		return fmt.Errorf("recurrence.horizon must be positive")
	}
	if c.Sweep.Retention <= 0 {
		return fmt.Errorf("sweep.retention must be positive")
	}
	return nil
}

// Location resolves Timezone; empty and "Local" mean the host zone
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EngineConfig maps the recurrence section onto the engine configuration
func (c *Config) EngineConfig() recurrence.EngineConfig {
	return recurrence.EngineConfig{
		CacheEnabled: c.Recurrence.Cache.Enabled,
		CacheConfig: recurrence.CacheConfig{
			TTL:             c.Recurrence.Cache.TTL,
			MaxEntries:      c.Recurrence.Cache.MaxEntries,
			CleanupInterval: c.Recurrence.Cache.CleanupInterval,
		},
		MaxOccurrences: c.Recurrence.MaxOccurrences,
		Horizon:        c.Recurrence.Horizon,
	}
}
