package config

import (
	"fmt"
)

// Config represents the main service configuration
type Config struct {
	// Data directory; each user's store lives in a subdirectory of it
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Store settings
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Embedding provider settings
	Embedding EmbeddingConfig `json:"embedding" mapstructure:"embedding"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics endpoint
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Tracing
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// StoreConfig holds per-user store settings
type StoreConfig struct {
	// CacheSize caps how many user stores stay open at once
	CacheSize int `json:"cache_size" mapstructure:"cache_size"`
}

// EmbeddingConfig holds embedding provider settings
type EmbeddingConfig struct {
	// Provider selects the embedding backend ("openai" or "none")
	Provider string `json:"provider" mapstructure:"provider"`
	Model    string `json:"model" mapstructure:"model"`
	APIKey   string `json:"api_key" mapstructure:"api_key"`
	BaseURL  string `json:"base_url" mapstructure:"base_url"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the Prometheus endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName string `json:"service_name" mapstructure:"service_name"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			CacheSize: 64,
		},
		Embedding: EmbeddingConfig{
			Provider: "none",
			Model:    "text-embedding-3-small",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9109",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "assistant-memory",
		},
	}
}

// Validate checks the configuration for inconsistencies
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if c.Store.CacheSize <= 0 {
		return fmt.Errorf("store.cache_size must be positive, got %d", c.Store.CacheSize)
	}

	switch c.Embedding.Provider {
	case "", "none":
	case "openai":
		if c.Embedding.APIKey == "" {
			return fmt.Errorf("embedding.api_key is required when embedding.provider is openai")
		}
		if c.Embedding.Model == "" {
			return fmt.Errorf("embedding.model is required when embedding.provider is openai")
		}
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}

	switch c.Logging.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required when metrics are enabled")
	}

	return nil
}
