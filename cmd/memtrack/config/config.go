// Package config provides configuration structures for the memtrack host
// command.
package config

import (
	"fmt"
	"time"
)

// Config represents the host command configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// Profile forces the profiling gate on, overriding the environment
	// toggle.
	Profile bool `yaml:"profile" json:"profile"`

	// Metrics configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Workload configuration
	Workload WorkloadConfig `yaml:"workload" json:"workload"`
}

// MetricsConfig represents Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Address string `yaml:"address" json:"address"`
	Path    string `yaml:"path" json:"path"`
}

// WorkloadConfig represents allocation churn configuration.
type WorkloadConfig struct {
	Goroutines int           `yaml:"goroutines" json:"goroutines"`
	Batches    int           `yaml:"batches" json:"batches"`
	Rows       int           `yaml:"rows" json:"rows"`
	Pause      time.Duration `yaml:"pause" json:"pause"`
}

// Validate validates the configuration and applies defaults.
func (c *Config) Validate() error {
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level: %s", c.LogLevel)
	}

	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}

	if c.Workload.Goroutines <= 0 {
		c.Workload.Goroutines = 4
	}
	if c.Workload.Batches <= 0 {
		c.Workload.Batches = 100
	}
	if c.Workload.Rows < 0 {
		return fmt.Errorf("workload rows must be non-negative")
	}
	if c.Workload.Rows == 0 {
		c.Workload.Rows = 1024
	}

	return nil
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Profile:  false,
		Metrics: MetricsConfig{
			Enabled: true,
			Address: ":9090",
			Path:    "/metrics",
		},
		Workload: WorkloadConfig{
			Goroutines: 4,
			Batches:    100,
			Rows:       1024,
			Pause:      0,
		},
	}
}
