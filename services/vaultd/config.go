package vaultd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses human readable duration strings.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return nil
	}
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be string")
	}
	if value.Value == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	d.Duration = parsed
	return nil
}

// Config captures the runtime configuration for vaultd.
type Config struct {
	ListenAddress string          `yaml:"listen"`
	Environment   string          `yaml:"environment"`
	VaultConfig   string          `yaml:"vault_config"`
	LogFile       string          `yaml:"log_file"`
	ReadTimeout   Duration        `yaml:"read_timeout"`
	WriteTimeout  Duration        `yaml:"write_timeout"`
	ShutdownGrace Duration        `yaml:"shutdown_grace"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
	Admin         AdminConfig     `yaml:"admin"`
	Telemetry     TelemetryConfig `yaml:"telemetry"`
}

// RateLimitConfig bounds per-client request rates on the public endpoints.
type RateLimitConfig struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
}

// AdminConfig captures security settings for the admin API.
type AdminConfig struct {
	BearerToken     string `yaml:"bearer_token"`
	BearerTokenFile string `yaml:"bearer_token_file"`
}

// TelemetryConfig configures the OTLP exporters.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
	Headers  string `yaml:"headers"`
	Metrics  bool   `yaml:"metrics"`
	Traces   bool   `yaml:"traces"`
}

func (a *AdminConfig) normalise() error {
	a.BearerToken = strings.TrimSpace(a.BearerToken)
	if a.BearerToken != "" {
		return nil
	}
	if path := strings.TrimSpace(a.BearerTokenFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read bearer token file: %w", err)
		}
		a.BearerToken = strings.TrimSpace(string(raw))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if cfg.ReadTimeout.Duration <= 0 {
		cfg.ReadTimeout.Duration = 10 * time.Second
	}
	if cfg.WriteTimeout.Duration <= 0 {
		cfg.WriteTimeout.Duration = 15 * time.Second
	}
	if cfg.ShutdownGrace.Duration <= 0 {
		cfg.ShutdownGrace.Duration = 10 * time.Second
	}
	if cfg.RateLimit.RequestsPerMinute <= 0 {
		cfg.RateLimit.RequestsPerMinute = 120
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 10
	}
}

// LoadConfig reads configuration from the supplied path.
func LoadConfig(path string) (Config, error) {
	cfg := Config{}
	file, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()
	dec := yaml.NewDecoder(file)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := cfg.Admin.normalise(); err != nil {
		return cfg, fmt.Errorf("admin security: %w", err)
	}
	if strings.TrimSpace(cfg.VaultConfig) == "" {
		return cfg, fmt.Errorf("vault_config path required")
	}
	return cfg, nil
}
