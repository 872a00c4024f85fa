package config

import (
	"time"

	"github.com/vyrodovalexey/tlsutil/internal/observability"
	"github.com/vyrodovalexey/tlsutil/internal/tls"
	"github.com/vyrodovalexey/tlsutil/internal/tracing"
	"github.com/vyrodovalexey/tlsutil/internal/vault"
)

// Metrics endpoint defaults.
const (
	DefaultMetricsAddress           = ":9090"
	DefaultMetricsPath              = "/metrics"
	DefaultMetricsReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout          = 10 * time.Second
)

// Config is the tlsutil configuration document.
type Config struct {
	Logging observability.LogConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig           `yaml:"metrics" json:"metrics"`
	Monitor tls.MonitorConfig       `yaml:"monitor" json:"monitor"`
	Tracing tracing.Config          `yaml:"tracing" json:"-"`

	// Vault connects vault certificate sources to a Vault server.
	Vault vault.Config `yaml:"vault" json:"vault"`

	// ShutdownTimeout bounds the graceful stop of the monitor and tracer.
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// MetricsConfig configures the Prometheus endpoint served by the monitor command.
type MetricsConfig struct {
	Enabled           bool     `yaml:"enabled" json:"enabled"`
	Address           string   `yaml:"address,omitempty" json:"address,omitempty"`
	Path              string   `yaml:"path,omitempty" json:"path,omitempty"`
	Namespace         string   `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	ReadHeaderTimeout Duration `yaml:"readHeaderTimeout,omitempty" json:"readHeaderTimeout,omitempty"`
}

// DefaultConfig returns a configuration with defaults applied.
func DefaultConfig() *Config {
	return &Config{
		Logging: observability.DefaultLogConfig(),
		Metrics: MetricsConfig{
			Enabled:           true,
			Address:           DefaultMetricsAddress,
			Path:              DefaultMetricsPath,
			Namespace:         tls.DefaultNamespace,
			ReadHeaderTimeout: Duration(DefaultMetricsReadHeaderTimeout),
		},
		Monitor:         *tls.DefaultMonitorConfig(),
		ShutdownTimeout: Duration(DefaultShutdownTimeout),
	}
}
