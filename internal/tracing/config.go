package tracing

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrTypedConfigMismatch is returned when a typed_config "@type" does not
// match the factory it is handed to.
var ErrTypedConfigMismatch = errors.New("typed config type mismatch")

// Config is the tracing section of the configuration document.
//
//	tracing:
//	  http:
//	    name: tlsutil.otlp
//	    typed_config:
//	      "@type": type.googleapis.com/tlsutil.config.trace.v1.OTLPConfig
//	      collector_cluster: collector
//	  clusters:
//	    - name: collector
//	      address: otel-collector:4317
type Config struct {
	HTTP     *HTTPConfig `yaml:"http,omitempty"`
	Clusters []Cluster   `yaml:"clusters,omitempty"`
}

// HTTPConfig selects a tracer factory by name and carries its untyped or
// typed configuration block.
type HTTPConfig struct {
	Name        string    `yaml:"name"`
	Config      yaml.Node `yaml:"config,omitempty"`
	TypedConfig yaml.Node `yaml:"typed_config,omitempty"`
}

// Enabled reports whether a tracer is configured.
func (c *Config) Enabled() bool {
	return c != nil && c.HTTP != nil
}

// Validate checks the tracing section.
func (c *Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.HTTP.Name == "" {
		return errors.New("http.name is required")
	}

	seen := make(map[string]struct{}, len(c.Clusters))
	for i := range c.Clusters {
		cluster := &c.Clusters[i]
		if cluster.Name == "" {
			return fmt.Errorf("clusters[%d].name is required", i)
		}
		if cluster.Address == "" {
			return fmt.Errorf("clusters[%d].address is required", i)
		}
		if _, dup := seen[cluster.Name]; dup {
			return fmt.Errorf("clusters[%d].name: duplicate cluster %q", i, cluster.Name)
		}
		seen[cluster.Name] = struct{}{}
	}
	return nil
}

// TranslateToFactoryConfig decodes the factory configuration carried by
// httpCfg into the factory's own configuration type. A typed_config block
// takes precedence over config and must name the factory's ConfigType.
func TranslateToFactoryConfig(httpCfg *HTTPConfig, factory Factory) (any, error) {
	cfg := factory.NewConfig()
	if httpCfg == nil {
		return cfg, nil
	}

	switch {
	case httpCfg.TypedConfig.Kind != 0:
		var header struct {
			Type string `yaml:"@type"`
		}
		if err := httpCfg.TypedConfig.Decode(&header); err != nil {
			return nil, fmt.Errorf("failed to decode typed_config for %s: %w", factory.Name(), err)
		}
		if header.Type != factory.ConfigType() {
			return nil, fmt.Errorf("%w: got %q, %s expects %q",
				ErrTypedConfigMismatch, header.Type, factory.Name(), factory.ConfigType())
		}
		if err := httpCfg.TypedConfig.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode typed_config for %s: %w", factory.Name(), err)
		}
	case httpCfg.Config.Kind != 0:
		if err := httpCfg.Config.Decode(cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config for %s: %w", factory.Name(), err)
		}
	}

	return cfg, nil
}
