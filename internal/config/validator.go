package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vyrodovalexey/tlsutil/internal/tls"
	"github.com/vyrodovalexey/tlsutil/internal/vault"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
)

// Validator validates tlsutil configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(config *Config) error {
	return NewValidator().Validate(config)
}

// Validate validates the configuration and returns any errors.
func (v *Validator) Validate(config *Config) error {
	v.errors = make(ValidationErrors, 0)

	if config == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateLogging(config)
	v.validateMetrics(config)
	v.validateMonitor(config)
	v.validateTracing(config)
	v.validateVault(config)

	if config.ShutdownTimeout < 0 {
		v.addError("shutdownTimeout", "must be non-negative")
	}

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateLogging(config *Config) {
	if level := config.Logging.Level; level != "" && !validLogLevels[strings.ToLower(level)] {
		v.addError("logging.level", fmt.Sprintf("unsupported log level %q", level))
	}
	if format := config.Logging.Format; format != "" && !validLogFormats[format] {
		v.addError("logging.format", fmt.Sprintf("unsupported log format %q", format))
	}
}

func (v *Validator) validateMetrics(config *Config) {
	m := &config.Metrics
	if !m.Enabled {
		return
	}
	if m.Address == "" {
		v.addError("metrics.address", "address is required when metrics are enabled")
	}
	if m.Path != "" && !strings.HasPrefix(m.Path, "/") {
		v.addError("metrics.path", "path must start with '/'")
	}
	if m.ReadHeaderTimeout < 0 {
		v.addError("metrics.readHeaderTimeout", "must be non-negative")
	}
}

func (v *Validator) validateMonitor(config *Config) {
	err := config.Monitor.Validate()
	if err == nil {
		return
	}

	var cfgErr *tls.ConfigurationError
	if errors.As(err, &cfgErr) {
		path := "monitor"
		if cfgErr.Field != "" {
			path += "." + cfgErr.Field
		}
		v.addError(path, cfgErr.Message)
		return
	}
	v.addError("monitor", err.Error())
}

func (v *Validator) validateTracing(config *Config) {
	if err := config.Tracing.Validate(); err != nil {
		v.addError("tracing", err.Error())
	}
}

func (v *Validator) validateVault(config *Config) {
	if !config.Monitor.UsesVault() {
		return
	}
	err := config.Vault.Validate()
	if err == nil {
		return
	}

	var cfgErr *vault.ConfigurationError
	if errors.As(err, &cfgErr) {
		path := "vault"
		if cfgErr.Field != "" {
			path += "." + cfgErr.Field
		}
		v.addError(path, cfgErr.Message)
		return
	}
	v.addError("vault", err.Error())
}

func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}
