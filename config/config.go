package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Pulsefeed PulsefeedConfig `yaml:"pulsefeed"`
	Stream    StreamConfig    `yaml:"stream"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Market    MarketConfig    `yaml:"market"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type PulsefeedConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type StreamConfig struct {
	URL              string        `yaml:"url"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	MaxRetries       int           `yaml:"max_retries"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

type BootstrapConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type MarketConfig struct {
	Symbols         []string          `yaml:"symbols"`
	Timezones       map[string]string `yaml:"timezones"`
	DisplayTimezone string            `yaml:"display_timezone"`
	SeriesCapacity  int               `yaml:"series_capacity"`
	AlertCapacity   int               `yaml:"alert_capacity"`
}

type ChannelsConfig struct {
	FrameBuffer int `yaml:"frame_buffer"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// defaultConfig mirrors the producer's defaults: two symbols, four
// display timezones, 240 chart points and the 50 most recent alerts.
func defaultConfig() Config {
	return Config{
		Pulsefeed: PulsefeedConfig{
			Name:    "pulsefeed",
			Version: "dev",
		},
		Stream: StreamConfig{
			ReconnectDelay:   3 * time.Second,
			MaxRetries:       0,
			HandshakeTimeout: 10 * time.Second,
		},
		Bootstrap: BootstrapConfig{
			Enabled: true,
			Timeout: 10 * time.Second,
		},
		Market: MarketConfig{
			Symbols: []string{"BTCUSDT", "ETHUSDT"},
			Timezones: map[string]string{
				"utc":     "UTC",
				"us_west": "America/Los_Angeles",
				"us_east": "America/New_York",
				"beijing": "Asia/Shanghai",
			},
			DisplayTimezone: "utc",
			SeriesCapacity:  240,
			AlertCapacity:   50,
		},
		Channels: ChannelsConfig{
			FrameBuffer: 256,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := defaultConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override endpoints from environment variables if available
	if v := os.Getenv("PULSEFEED_STREAM_URL"); v != "" {
		config.Stream.URL = strings.TrimSpace(v)
	}
	if v := os.Getenv("PULSEFEED_BOOTSTRAP_URL"); v != "" {
		config.Bootstrap.URL = strings.TrimSpace(v)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Pulsefeed.Name == "" {
		return fmt.Errorf("pulsefeed.name must be set")
	}
	if len(config.Market.Symbols) == 0 {
		return fmt.Errorf("market.symbols must list at least one symbol")
	}
	if len(config.Market.Timezones) == 0 {
		return fmt.Errorf("market.timezones must list at least one timezone")
	}
	for key, name := range config.Market.Timezones {
		if _, err := time.LoadLocation(name); err != nil {
			return fmt.Errorf("market.timezones[%s]: unknown location %q: %w", key, name, err)
		}
	}
	if _, ok := config.Market.Timezones[config.Market.DisplayTimezone]; !ok {
		return fmt.Errorf("market.display_timezone %q is not a configured timezone", config.Market.DisplayTimezone)
	}
	if config.Market.SeriesCapacity <= 0 {
		return fmt.Errorf("market.series_capacity must be positive")
	}
	if config.Market.AlertCapacity <= 0 {
		return fmt.Errorf("market.alert_capacity must be positive")
	}
	if config.Stream.ReconnectDelay <= 0 {
		return fmt.Errorf("stream.reconnect_delay must be positive")
	}
	if config.Stream.MaxRetries < 0 {
		return fmt.Errorf("stream.max_retries cannot be negative")
	}
	if config.Channels.FrameBuffer <= 0 {
		return fmt.Errorf("channels.frame_buffer must be positive")
	}
	if config.Bootstrap.Enabled && config.Bootstrap.Timeout <= 0 {
		return fmt.Errorf("bootstrap.timeout must be positive")
	}
	return nil
}
