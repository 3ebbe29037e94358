// Package config loads planboard settings from YAML and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fentz26/planboard/internal/scheduler"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. PLANBOARD_SWEEP_INTERVAL.
const EnvPrefix = "PLANBOARD"

// Config holds daemon and client settings.
type Config struct {
	Listen string           `mapstructure:"listen"`
	DB     string           `mapstructure:"db"`
	API    string           `mapstructure:"api"`
	Sweep  scheduler.Config `mapstructure:"sweep"`
}

// Dir returns the planboard home directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".planboard"
	}
	return filepath.Join(home, ".planboard")
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		Listen: "127.0.0.1:7466",
		DB:     filepath.Join(Dir(), "planboard.db"),
		API:    "http://127.0.0.1:7466",
		Sweep:  *scheduler.DefaultConfig(),
	}
}

// Load reads path (or the default location when empty) and applies
// PLANBOARD_* environment overrides. A missing default file is not an error;
// a missing explicit file is.
func Load(path string) (*Config, error) {
	d := DefaultConfig()

	v := viper.New()
	v.SetDefault("listen", d.Listen)
	v.SetDefault("db", d.DB)
	v.SetDefault("api", d.API)
	v.SetDefault("sweep.enabled", d.Sweep.Enabled)
	v.SetDefault("sweep.interval", d.Sweep.Interval)
	v.SetDefault("sweep.workers", d.Sweep.Workers)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Sweep.Interval <= 0 {
		cfg.Sweep.Interval = time.Minute
	}
	return cfg, nil
}
