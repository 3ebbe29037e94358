// Package scheduler runs the periodic milestone sweep.
package scheduler

import "time"

// Config defines the sweeper configuration.
type Config struct {
	// Enabled turns the periodic sweep on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Interval is the time between sweeps.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
	// Workers bounds how many tasks are evaluated concurrently.
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:  true,
		Interval: time.Minute,
		Workers:  4,
	}
}

// normalize fills zero values with defaults.
func (c *Config) normalize() {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
}
