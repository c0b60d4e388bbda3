// Package config provides configuration loading for audienced.
//
// Values come from three layers, highest precedence first: AUDIENCED_*
// environment variables, the YAML config file, and Default.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config holds the complete audienced configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Taxonomy      TaxonomyConfig      `koanf:"taxonomy"`
	Selection     SelectionConfig     `koanf:"selection"`
	Storage       StorageConfig       `koanf:"storage"`
	Events        EventsConfig        `koanf:"events"`
	Observability ObservabilityConfig `koanf:"observability"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is the sustained requests per second per client. Zero
	// disables limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// APIToken guards the write endpoints when set.
	APIToken Secret `koanf:"api_token"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// TaxonomyConfig locates the audience tree.
type TaxonomyConfig struct {
	// Path is a .json or .toml tree file. Empty serves an empty tree.
	Path     string   `koanf:"path"`
	Watch    bool     `koanf:"watch"`
	Debounce Duration `koanf:"debounce"`
}

// SelectionConfig holds engine policy.
type SelectionConfig struct {
	PruneEmptyAncestors bool `koanf:"prune_empty_ancestors"`
	// RepairOnSave completes ancestor chains and drops unknown ids before a
	// selection is stored.
	RepairOnSave bool `koanf:"repair_on_save"`
}

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// StorageConfig selects where saved selections live.
type StorageConfig struct {
	Driver string `koanf:"driver"`
	Path   string `koanf:"path"`
}

// EventsConfig configures NATS change events.
type EventsConfig struct {
	Enabled       bool     `koanf:"enabled"`
	URL           string   `koanf:"url"`
	SubjectPrefix string   `koanf:"subject_prefix"`
	Token         Secret   `koanf:"token"`
	Timeout       Duration `koanf:"timeout"`
}

// ObservabilityConfig holds OpenTelemetry and Prometheus configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	EnableMetrics   bool   `koanf:"enable_metrics"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol string `koanf:"protocol"`
	Insecure bool   `koanf:"insecure"`
	// SampleRate is the trace sampling ratio in [0,1].
	SampleRate float64 `koanf:"sample_rate"`
}

// LoggingConfig is the file/env shape of the logger settings. The logging
// package turns it into a full logging.Config.
type LoggingConfig struct {
	Level    string            `koanf:"level"`
	Format   string            `koanf:"format"`
	OTEL     bool              `koanf:"otel"`
	Sampling bool              `koanf:"sampling"`
	Fields   map[string]string `koanf:"fields"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8480,
			ShutdownTimeout: Duration(10 * time.Second),
			RateLimit:       50,
			RateBurst:       100,
		},
		Taxonomy: TaxonomyConfig{
			Watch:    true,
			Debounce: Duration(250 * time.Millisecond),
		},
		Selection: SelectionConfig{
			RepairOnSave: true,
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
		},
		Events: EventsConfig{
			URL:           "nats://127.0.0.1:4222",
			SubjectPrefix: "audienced",
			Timeout:       Duration(2 * time.Second),
		},
		Observability: ObservabilityConfig{
			EnableMetrics: true,
			ServiceName:   "audienced",
			Endpoint:      "localhost:4317",
			Protocol:      "grpc",
			Insecure:      true,
			SampleRate:    1.0,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Sampling: true,
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit cannot be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("rate burst must be at least 1 when rate limiting"))
	}

	if p := c.Taxonomy.Path; p != "" {
		lower := strings.ToLower(p)
		if !strings.HasSuffix(lower, ".json") && !strings.HasSuffix(lower, ".toml") {
			errs = append(errs, fmt.Errorf("taxonomy path must end in .json or .toml: %s", p))
		}
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage path required for sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q (want memory or sqlite)", c.Storage.Driver))
	}

	if c.Events.Enabled {
		if c.Events.URL == "" {
			errs = append(errs, errors.New("events url required when events are enabled"))
		}
		if c.Events.SubjectPrefix == "" || strings.ContainsAny(c.Events.SubjectPrefix, " *>") {
			errs = append(errs, fmt.Errorf("invalid events subject prefix %q", c.Events.SubjectPrefix))
		}
	}

	if c.Observability.EnableTelemetry {
		if c.Observability.ServiceName == "" {
			errs = append(errs, errors.New("service name required when telemetry is enabled"))
		}
		if c.Observability.Protocol != "grpc" && c.Observability.Protocol != "http" {
			errs = append(errs, fmt.Errorf("telemetry protocol must be grpc or http, got %q", c.Observability.Protocol))
		}
	}
	if r := c.Observability.SampleRate; r < 0 || r > 1 {
		errs = append(errs, fmt.Errorf("sample rate must be within [0,1], got %v", r))
	}

	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		errs = append(errs, fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
