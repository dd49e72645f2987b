// Package config loads astrocore runtime settings from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"astrocore/internal/blob"
	"astrocore/internal/core"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every variable in Config.
const EnvPrefix = "ASTROCORE_"

// Metrics drivers accepted by ASTROCORE_METRICS_DRIVER.
const (
	MetricsPrometheus = "prometheus"
	MetricsExpvar     = "expvar"
	MetricsNone       = "none"
)

// OTelConfig toggles OTLP trace export.
type OTelConfig struct {
	Endpoint string `env:"ENDPOINT"`
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
}

// Config is the full process configuration.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":5555"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	MetricsDriver   string        `env:"METRICS_DRIVER" envDefault:"prometheus"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Storage         core.StorageConfig
	OTel            OTelConfig  `envPrefix:"OTEL_"`
	Blob            blob.Config `envPrefix:"BLOB_"`
}

// legacy carries unprefixed variables honoured for compatibility.
type legacy struct {
	DBURI string `env:"DB_URI"`
}

// ParseEnv parses environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads Config from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	var old legacy
	if err := ParseEnv(&old); err != nil {
		return Config{}, err
	}
	cfg.Storage.URI = old.DBURI
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers, levels and formats.
func (c Config) Validate() error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q", c.LogFormat)
	}
	switch c.MetricsDriver {
	case MetricsPrometheus, MetricsExpvar, MetricsNone:
	default:
		return fmt.Errorf("invalid metrics driver %q", c.MetricsDriver)
	}
	storage, err := c.Storage.Resolve()
	if err != nil {
		return err
	}
	switch storage.Driver {
	case core.StorageMemory, core.StorageSQLite, core.StoragePostgres:
	default:
		return fmt.Errorf("invalid storage driver %q", storage.Driver)
	}
	switch c.Blob.Driver {
	case string(blob.DriverFilesystem), string(blob.DriverMemory), string(blob.DriverS3):
	default:
		return fmt.Errorf("invalid blob driver %q", c.Blob.Driver)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.ShutdownTimeout)
	}
	return nil
}
