// Package config provides configuration management for keepsake using Viper.
package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/tmartens/keepsake/internal/errors"
	"github.com/tmartens/keepsake/internal/paths"
	"github.com/tmartens/keepsake/internal/storage"
)

// Target names one directory to back up, with an optional per-path backend.
type Target struct {
	Path    string `mapstructure:"path" yaml:"path"`
	Storage string `mapstructure:"storage" yaml:"storage,omitempty"`
}

// Config is the resolved configuration the engine and orchestrator consume.
type Config struct {
	Version        int                        `mapstructure:"version" yaml:"version"`
	DefaultStorage string                     `mapstructure:"default_storage" yaml:"default_storage"`
	Targets        []Target                   `mapstructure:"targets" yaml:"targets"`
	Encrypt        bool                       `mapstructure:"encrypt" yaml:"encrypt"`
	Debounce       time.Duration              `mapstructure:"debounce" yaml:"debounce"`
	StatePath      string                     `mapstructure:"state_path" yaml:"state_path"`
	StorageOptions map[string]storage.Options `mapstructure:"storage" yaml:"storage"`
}

// Init initializes Viper with defaults and search paths.
// Call this once at application startup before accessing config values.
func Init() {
	viper.SetConfigName("keepsake")
	viper.SetConfigType("yaml")

	// Search paths (in order of precedence)
	viper.AddConfigPath(".")
	viper.AddConfigPath(paths.ConfigDir())

	viper.SetEnvPrefix("KEEPSAKE")
	viper.AutomaticEnv()

	viper.SetDefault("version", 1)
	viper.SetDefault("default_storage", "local")
	viper.SetDefault("encrypt", false)
	viper.SetDefault("debounce", 5*time.Second)
	viper.SetDefault("state_path", paths.StateFile())
}

// Load reads the configuration file.
// If path is provided, it reads from that specific file.
// If path is empty, it searches the default locations and falls back to
// defaults when no file exists.
func Load(path string) (*Config, error) {
	if path != "" {
		viper.SetConfigFile(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if path != "" {
				return nil, errors.Configuration("config file not found at %s", path)
			}
		} else {
			return nil, errors.Wrap(errors.Mark(err, errors.ErrConfiguration), "reading config file")
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(errors.Mark(err, errors.ErrConfiguration), "unmarshaling config")
	}

	return &cfg, nil
}

// OptionsFor returns the option block for the named backend. Backends with no
// block get an empty set; their factory reports what is missing.
func (c *Config) OptionsFor(name string) storage.Options {
	if opts, ok := c.StorageOptions[name]; ok {
		return opts
	}
	return storage.Options{}
}

// StorageFor resolves the backend name for a source path:
// explicit override, then the target's configured storage, then the default.
func (c *Config) StorageFor(sourcePath, override string) string {
	if override != "" {
		return override
	}
	abs, err := filepath.Abs(sourcePath)
	if err != nil {
		abs = sourcePath
	}
	for _, t := range c.Targets {
		tabs, err := filepath.Abs(t.Path)
		if err != nil {
			tabs = t.Path
		}
		if tabs == abs && t.Storage != "" {
			return t.Storage
		}
	}
	return c.DefaultStorage
}
