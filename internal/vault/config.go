package vault

import (
	"time"
)

// DefaultTimeout bounds a single request to Vault.
const DefaultTimeout = 30 * time.Second

// Config represents Vault client configuration.
type Config struct {
	// Address is the Vault server address. VAULT_ADDR is used when empty.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`

	// Token authenticates requests. VAULT_TOKEN is used when empty.
	Token string `yaml:"token,omitempty" json:"-"`

	// Namespace is the Vault namespace (Enterprise feature).
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// Timeout bounds each request (default: 30s).
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`

	// TLS configuration for the Vault connection.
	TLS *TLSConfig `yaml:"tls,omitempty" json:"tls,omitempty"`
}

// TLSConfig configures TLS for the Vault connection.
type TLSConfig struct {
	// CACert is the path to the CA certificate file.
	CACert string `yaml:"caCert,omitempty" json:"caCert,omitempty"`

	// CAPath is the path to a directory of CA certificates.
	CAPath string `yaml:"caPath,omitempty" json:"caPath,omitempty"`

	// ClientCert is the path to the client certificate file.
	ClientCert string `yaml:"clientCert,omitempty" json:"clientCert,omitempty"`

	// ClientKey is the path to the client private key file.
	ClientKey string `yaml:"clientKey,omitempty" json:"clientKey,omitempty"`

	// ServerName overrides the name used to verify the server certificate.
	ServerName string `yaml:"serverName,omitempty" json:"serverName,omitempty"`

	// SkipVerify skips TLS certificate verification (insecure).
	SkipVerify bool `yaml:"skipVerify,omitempty" json:"skipVerify,omitempty"`
}

// Validate validates the Vault configuration.
func (c *Config) Validate() error {
	if c == nil {
		return NewConfigurationError("", "configuration is nil")
	}

	if c.Timeout < 0 {
		return NewConfigurationError("timeout", "timeout cannot be negative")
	}

	if c.TLS != nil && (c.TLS.ClientCert == "") != (c.TLS.ClientKey == "") {
		return NewConfigurationError("tls", "clientCert and clientKey must be set together")
	}

	return nil
}

// GetTimeout returns the request timeout, or DefaultTimeout when unset.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
