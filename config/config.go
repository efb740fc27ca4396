// Package config loads service settings from flags, CACHE_* environment
// variables, a YAML config file and built-in defaults, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CACHE"

const (
	BackendMemory = "memory"
	BackendFile   = "file"
)

type Config struct {
	Listen  string  `mapstructure:"listen"`
	MaxSize int     `mapstructure:"max_size"`
	Verbose bool    `mapstructure:"verbose"`
	Store   Store   `mapstructure:"store"`
	Metrics Metrics `mapstructure:"metrics"`
}

type Store struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

type Metrics struct {
	Enabled   bool          `mapstructure:"enabled"`
	Namespace string        `mapstructure:"namespace"`
	Interval  time.Duration `mapstructure:"interval"`
	Profile   string        `mapstructure:"profile"`
	Region    string        `mapstructure:"region"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("max_size", 100)
	v.SetDefault("verbose", false)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.path", "data/records.yaml")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "CacheService")
	v.SetDefault("metrics.interval", time.Minute)
	v.SetDefault("metrics.profile", "")
	v.SetDefault("metrics.region", "")
}

// New returns a viper instance with defaults and environment binding set up.
// A non-empty cfgFile is read as YAML; otherwise ./cache-service.yaml is used
// when present.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("cache-service")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxSize < 1 {
		return fmt.Errorf("max_size must be at least 1, got %d", c.MaxSize)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("store.path is required for the file backend")
		}
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendMemory, BackendFile)
	}

	if c.Metrics.Enabled {
		if c.Metrics.Interval <= 0 {
			return fmt.Errorf("metrics.interval must be positive, got %s", c.Metrics.Interval)
		}
		if c.Metrics.Namespace == "" {
			return errors.New("metrics.namespace is required when metrics are enabled")
		}
	}

	return nil
}
