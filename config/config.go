// Package config loads client configuration from an optional YAML file with
// environment variable overrides. The supported timeframe set is
// configuration, not code: deployments differ on which intervals the feed
// serves.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"omnistream/internal/model"
)

// Duration wraps time.Duration for YAML decoding of values like "30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all settings for one streaming client instance.
type Config struct {
	// Endpoint is the feed WebSocket URL.
	Endpoint string `yaml:"endpoint"`

	// Symbol/Timeframe form the initial subscription.
	Symbol    string `yaml:"symbol"`
	Timeframe string `yaml:"timeframe"`

	// Timeframes is the set of intervals the feed supports.
	Timeframes []string `yaml:"timeframes"`

	// Reconnect backoff bounds (capped exponential).
	ReconnectInitial Duration `yaml:"reconnect_initial"`
	ReconnectMax     Duration `yaml:"reconnect_max"`

	PingInterval Duration `yaml:"ping_interval"`

	// EventLogCapacity bounds the operator event ring.
	EventLogCapacity int `yaml:"event_log_capacity"`

	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Endpoint:         "ws://localhost:8000/ws",
		Symbol:           "BTC/USDT",
		Timeframe:        "1m",
		Timeframes:       []string{"1m", "5m", "15m", "1h", "4h", "1d"},
		ReconnectInitial: Duration(1 * time.Second),
		ReconnectMax:     Duration(30 * time.Second),
		PingInterval:     Duration(15 * time.Second),
		EventLogCapacity: 50,
		MetricsAddr:      ":9090",
		LogLevel:         "info",
	}
}

// Load reads configuration: defaults, then the YAML file at path (if path
// is non-empty), then environment overrides, then validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Endpoint = getEnv("OMNISTREAM_ENDPOINT", c.Endpoint)
	c.Symbol = getEnv("OMNISTREAM_SYMBOL", c.Symbol)
	c.Timeframe = getEnv("OMNISTREAM_TIMEFRAME", c.Timeframe)
	c.MetricsAddr = getEnv("OMNISTREAM_METRICS_ADDR", c.MetricsAddr)
	c.LogLevel = getEnv("OMNISTREAM_LOG_LEVEL", c.LogLevel)
}

// Validate checks internal consistency.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required")
	}
	if c.Symbol == "" {
		return fmt.Errorf("config: symbol is required")
	}
	if len(c.Timeframes) == 0 {
		return fmt.Errorf("config: timeframes must not be empty")
	}
	if !c.SupportsTimeframe(model.Timeframe(c.Timeframe)) {
		return fmt.Errorf("config: timeframe %q not in supported set %v", c.Timeframe, c.Timeframes)
	}
	if c.ReconnectInitial.Std() <= 0 || c.ReconnectMax.Std() < c.ReconnectInitial.Std() {
		return fmt.Errorf("config: reconnect bounds must satisfy 0 < initial <= max")
	}
	if c.EventLogCapacity <= 0 {
		return fmt.Errorf("config: event_log_capacity must be positive")
	}
	return nil
}

// SupportsTimeframe reports whether tf is in the configured set.
func (c *Config) SupportsTimeframe(tf model.Timeframe) bool {
	for _, t := range c.Timeframes {
		if model.Timeframe(t) == tf {
			return true
		}
	}
	return false
}

// InitialSubscription returns the configured startup target.
func (c *Config) InitialSubscription() model.Subscription {
	return model.Subscription{Symbol: c.Symbol, Timeframe: model.Timeframe(c.Timeframe)}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
