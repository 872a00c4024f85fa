package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles configuration loading from files and readers.
type Loader struct {
	basePath string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadConfig loads configuration from a file path.
func LoadConfig(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads configuration from a file path. Relative certificate paths in
// the monitor section are resolved against the file's directory.
func (l *Loader) Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	l.basePath = filepath.Dir(absPath)

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg, err := l.parseConfig(data)
	if err != nil {
		return nil, err
	}

	l.resolvePaths(cfg)
	return cfg, nil
}

// LoadFromReader loads configuration from an io.Reader.
func (l *Loader) LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

// parseConfig parses YAML data over the defaults.
func (l *Loader) parseConfig(data []byte) (*Config, error) {
	content := l.substituteEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	return config, nil
}

// resolvePaths makes relative certificate and CA paths absolute.
func (l *Loader) resolvePaths(cfg *Config) {
	if l.basePath == "" {
		return
	}
	for i := range cfg.Monitor.Certificates {
		cert := &cfg.Monitor.Certificates[i]
		if cert.CertFile != "" && !filepath.IsAbs(cert.CertFile) {
			cert.CertFile = filepath.Join(l.basePath, cert.CertFile)
		}
	}
	for i := range cfg.Tracing.Clusters {
		cluster := &cfg.Tracing.Clusters[i]
		if cluster.TLS != nil && cluster.TLS.CAFile != "" && !filepath.IsAbs(cluster.TLS.CAFile) {
			cluster.TLS.CAFile = filepath.Join(l.basePath, cluster.TLS.CAFile)
		}
	}
	if t := cfg.Vault.TLS; t != nil {
		for _, p := range []*string{&t.CACert, &t.CAPath, &t.ClientCert, &t.ClientKey} {
			if *p != "" && !filepath.IsAbs(*p) {
				*p = filepath.Join(l.basePath, *p)
			}
		}
	}
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	return strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")
}
