package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.nightvibe/config.toml.
type Config struct {
	DefaultProfile       string   `toml:"default_profile"`
	APIBaseURL           string   `toml:"api_base_url"`
	RealtimeURL          string   `toml:"realtime_url"`
	PageSize             int      `toml:"page_size"`
	HTTPTimeout          Duration `toml:"http_timeout"`
	StripePublishableKey string   `toml:"stripe_publishable_key"`
	MetricsAddr          string   `toml:"metrics_addr"`
	OTLPEndpoint         string   `toml:"otlp_endpoint"`
	LogLevel             string   `toml:"log_level"`
}

// Duration is a time.Duration that reads and writes as "15s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		DefaultProfile: "main",
		APIBaseURL:     "https://api.nightvibe.app/api",
		RealtimeURL:    "wss://api.nightvibe.app/ws",
		PageSize:       30,
		HTTPTimeout:    Duration{15 * time.Second},
		LogLevel:       "info",
	}
}

// Load reads config from the given path. Returns error if file missing.
// Keys absent from the file keep their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault is Load that falls back to Default when the file is missing
// or unreadable.
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return Default()
	}
	return cfg
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
