// Package config loads tunables from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Hub     HubConfig
	Logging LogConfig
	Metrics MetricsConfig
}

// HubConfig holds forwarding-loop tunables.
type HubConfig struct {
	// PollInterval bounds how long the loop waits for readiness before
	// re-checking its stop flag.
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"100ms"`
	// ReadBufferSize is the chunk buffer size for a single read.
	ReadBufferSize int `envconfig:"READ_BUFFER" default:"4096"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LEVEL" default:"info"`
	Development bool   `envconfig:"DEV" default:"false"`
}

// MetricsConfig holds the Prometheus listener configuration. An empty
// address disables the listener.
type MetricsConfig struct {
	Addr string `envconfig:"ADDR" default:""`
}

// Load loads configuration from SERIALHUB_* environment variables:
// SERIALHUB_HUB_POLL_INTERVAL, SERIALHUB_HUB_READ_BUFFER,
// SERIALHUB_LOGGING_LEVEL, SERIALHUB_LOGGING_DEV, SERIALHUB_METRICS_ADDR.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("serialhub", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Hub: HubConfig{
			PollInterval:   100 * time.Millisecond,
			ReadBufferSize: 4096,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Metrics: MetricsConfig{},
	}
}

// Validate rejects configurations the hub cannot run with.
func (c *Config) Validate() error {
	if c.Hub.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.Hub.PollInterval)
	}
	if c.Hub.ReadBufferSize <= 0 {
		return fmt.Errorf("read buffer size must be positive, got %d", c.Hub.ReadBufferSize)
	}
	return nil
}
