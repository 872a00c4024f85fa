package tls

import (
	"fmt"
	"time"
)

// Default monitor settings.
const (
	DefaultCheckInterval = time.Hour
	DefaultWarningDays   = 30
	DefaultDebounceDelay = 100 * time.Millisecond
)

// CertificateSource represents the source of a monitored certificate.
type CertificateSource string

// Certificate source constants.
const (
	// CertificateSourceFile loads certificates from a PEM file.
	CertificateSourceFile CertificateSource = "file"

	// CertificateSourceInline uses inline PEM-encoded certificates.
	CertificateSourceInline CertificateSource = "inline"

	// CertificateSourceVault reads a certificate from a Vault PKI mount.
	CertificateSourceVault CertificateSource = "vault"
)

// String returns the string representation of the certificate source.
func (s CertificateSource) String() string {
	return string(s)
}

// IsValid returns true if the certificate source is valid.
func (s CertificateSource) IsValid() bool {
	switch s {
	case CertificateSourceFile, CertificateSourceInline, CertificateSourceVault:
		return true
	default:
		return false
	}
}

// CertificateConfig names one certificate to watch for expiry.
type CertificateConfig struct {
	// Name identifies the certificate in metrics, logs and events.
	Name string `yaml:"name" json:"name"`

	// Source specifies where to load the certificate from.
	Source CertificateSource `yaml:"source,omitempty" json:"source,omitempty"`

	// CertFile is the path to the certificate file (PEM). Only the first
	// certificate in the file is monitored.
	CertFile string `yaml:"certFile,omitempty" json:"certFile,omitempty"`

	// CertData is the PEM-encoded certificate (inline).
	CertData string `yaml:"certData,omitempty" json:"certData,omitempty"`

	// Vault locates the certificate in a Vault PKI secrets engine.
	Vault *VaultCertificateConfig `yaml:"vault,omitempty" json:"vault,omitempty"`
}

// VaultCertificateConfig names a certificate stored by a Vault PKI mount.
type VaultCertificateConfig struct {
	// Mount is the PKI secrets engine mount path, e.g. "pki".
	Mount string `yaml:"mount" json:"mount"`

	// Serial is the certificate serial as Vault prints it
	// ("17:67:16:b0:..."), or "ca" for the mount's issuing CA.
	Serial string `yaml:"serial" json:"serial"`
}

// MonitorConfig configures the certificate expiry monitor.
type MonitorConfig struct {
	// Certificates lists the certificates to monitor.
	Certificates []CertificateConfig `yaml:"certificates,omitempty" json:"certificates,omitempty"`

	// CheckInterval is how often expiry is re-evaluated (default: 1h).
	CheckInterval time.Duration `yaml:"checkInterval,omitempty" json:"checkInterval,omitempty"`

	// WarningDays is the threshold, in days, at or below which a
	// certificate is reported as expiring (default: 30).
	WarningDays int32 `yaml:"warningDays,omitempty" json:"warningDays,omitempty"`

	// Watch enables reloading file sources when they change on disk.
	Watch bool `yaml:"watch,omitempty" json:"watch,omitempty"`

	// DebounceDelay coalesces bursts of file events (default: 100ms).
	DebounceDelay time.Duration `yaml:"debounceDelay,omitempty" json:"debounceDelay,omitempty"`
}

// DefaultMonitorConfig returns a MonitorConfig with default settings.
func DefaultMonitorConfig() *MonitorConfig {
	return &MonitorConfig{
		CheckInterval: DefaultCheckInterval,
		WarningDays:   DefaultWarningDays,
		DebounceDelay: DefaultDebounceDelay,
	}
}

// Validate validates the monitor configuration.
func (c *MonitorConfig) Validate() error {
	if c == nil {
		return NewConfigurationError("", "monitor configuration is nil")
	}

	if c.CheckInterval < 0 {
		return NewConfigurationError("checkInterval", "check interval cannot be negative")
	}

	if c.WarningDays < 0 {
		return NewConfigurationError("warningDays", "warning days cannot be negative")
	}

	if c.DebounceDelay < 0 {
		return NewConfigurationError("debounceDelay", "debounce delay cannot be negative")
	}

	seen := make(map[string]struct{}, len(c.Certificates))
	for i := range c.Certificates {
		cert := &c.Certificates[i]
		field := fmt.Sprintf("certificates[%d]", i)

		if err := cert.Validate(field); err != nil {
			return err
		}

		if _, dup := seen[cert.Name]; dup {
			return NewConfigurationError(field+".name", fmt.Sprintf("duplicate certificate name: %s", cert.Name))
		}
		seen[cert.Name] = struct{}{}
	}

	return nil
}

// Validate validates a single certificate entry. field prefixes the
// reported field path.
func (c *CertificateConfig) Validate(field string) error {
	if c.Name == "" {
		return NewConfigurationError(field+".name", "certificate name required")
	}

	source := c.GetEffectiveSource()
	if !source.IsValid() {
		return NewConfigurationError(field+".source", fmt.Sprintf("invalid certificate source: %s", source))
	}

	switch source {
	case CertificateSourceFile:
		if c.CertFile == "" {
			return NewConfigurationError(field+".certFile", "certificate file path required")
		}
	case CertificateSourceInline:
		if c.CertData == "" {
			return NewConfigurationError(field+".certData", "certificate data required")
		}
	case CertificateSourceVault:
		if c.Vault == nil {
			return NewConfigurationError(field+".vault", "vault settings required")
		}
		if c.Vault.Mount == "" {
			return NewConfigurationError(field+".vault.mount", "vault mount required")
		}
		if c.Vault.Serial == "" {
			return NewConfigurationError(field+".vault.serial", "vault certificate serial required")
		}
	}

	return nil
}

// GetEffectiveSource returns the effective certificate source.
func (c *CertificateConfig) GetEffectiveSource() CertificateSource {
	if c.Source != "" {
		return c.Source
	}
	if c.Vault != nil {
		return CertificateSourceVault
	}
	if c.CertData != "" {
		return CertificateSourceInline
	}
	return CertificateSourceFile
}

// withDefaults returns a copy of c with zero settings replaced by defaults.
func (c *MonitorConfig) withDefaults() *MonitorConfig {
	out := c.Clone()
	if out.CheckInterval == 0 {
		out.CheckInterval = DefaultCheckInterval
	}
	if out.WarningDays == 0 {
		out.WarningDays = DefaultWarningDays
	}
	if out.DebounceDelay == 0 {
		out.DebounceDelay = DefaultDebounceDelay
	}
	return out
}

// Clone creates a deep copy of the MonitorConfig.
func (c *MonitorConfig) Clone() *MonitorConfig {
	if c == nil {
		return nil
	}

	clone := *c
	if c.Certificates != nil {
		clone.Certificates = make([]CertificateConfig, len(c.Certificates))
		copy(clone.Certificates, c.Certificates)
		for i := range clone.Certificates {
			if v := clone.Certificates[i].Vault; v != nil {
				vc := *v
				clone.Certificates[i].Vault = &vc
			}
		}
	}

	return &clone
}

// UsesVault reports whether any certificate is read from Vault.
func (c *MonitorConfig) UsesVault() bool {
	if c == nil {
		return false
	}
	for i := range c.Certificates {
		if c.Certificates[i].GetEffectiveSource() == CertificateSourceVault {
			return true
		}
	}
	return false
}
