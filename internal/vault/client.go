package vault

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/vyrodovalexey/tlsutil/internal/observability"
)

// Client reads certificates from Vault PKI mounts.
type Client struct {
	api    *vaultapi.Client
	logger observability.Logger
}

// New creates a Vault client. Empty Address and Token settings fall back to
// VAULT_ADDR and VAULT_TOKEN.
func New(cfg *Config, logger observability.Logger) (*Client, error) {
	if cfg == nil {
		return nil, NewConfigurationError("", "configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	apiConfig := vaultapi.DefaultConfig()
	if apiConfig.Error != nil {
		return nil, NewConfigurationErrorWithCause("", "failed to read vault environment", apiConfig.Error)
	}
	if cfg.Address != "" {
		apiConfig.Address = cfg.Address
	}
	apiConfig.Timeout = cfg.GetTimeout()

	if cfg.TLS != nil {
		tlsConfig := &vaultapi.TLSConfig{
			CACert:        cfg.TLS.CACert,
			CAPath:        cfg.TLS.CAPath,
			ClientCert:    cfg.TLS.ClientCert,
			ClientKey:     cfg.TLS.ClientKey,
			TLSServerName: cfg.TLS.ServerName,
			Insecure:      cfg.TLS.SkipVerify,
		}
		if err := apiConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, NewConfigurationErrorWithCause("tls", "failed to configure TLS", err)
		}
	}

	api, err := vaultapi.NewClient(apiConfig)
	if err != nil {
		return nil, NewVaultErrorWithCause("init", "", "failed to create vault client", err)
	}

	if cfg.Token != "" {
		api.SetToken(cfg.Token)
	}
	if cfg.Namespace != "" {
		api.SetNamespace(cfg.Namespace)
	}

	return &Client{
		api:    api,
		logger: logger.With(observability.String("component", "vault")),
	}, nil
}

// Address returns the Vault server address in use.
func (c *Client) Address() string {
	return c.api.Address()
}

// FetchCertificate reads the certificate stored under serial in the PKI
// engine mounted at mount. Serial "ca" returns the mount's issuing CA.
func (c *Client) FetchCertificate(ctx context.Context, mount, serial string) (*x509.Certificate, error) {
	mount = strings.Trim(mount, "/")
	if mount == "" {
		return nil, NewVaultError("pki_read_cert", "", "mount is required")
	}
	if serial == "" {
		return nil, NewVaultError("pki_read_cert", "", "serial is required")
	}

	path := fmt.Sprintf("%s/cert/%s", mount, serial)
	start := time.Now()

	secret, err := c.api.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, NewVaultErrorWithCause("pki_read_cert", path, "failed to read certificate", classify(err))
	}
	if secret == nil || secret.Data == nil {
		return nil, NewVaultErrorWithCause("pki_read_cert", path, "no data in response", ErrSecretNotFound)
	}

	certPEM, ok := secret.Data["certificate"].(string)
	if !ok || certPEM == "" {
		return nil, NewVaultErrorWithCause("pki_read_cert", path,
			"certificate not found in response", ErrCertificateInvalid)
	}

	block, _ := pem.Decode([]byte(certPEM))
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, NewVaultErrorWithCause("pki_read_cert", path,
			"response certificate is not PEM", ErrCertificateInvalid)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, NewVaultErrorWithCause("pki_read_cert", path, "failed to parse certificate",
			errors.Join(ErrCertificateInvalid, err))
	}

	c.logger.Debug("certificate read from vault",
		observability.String("path", path),
		observability.Duration("duration", time.Since(start)),
	)

	return cert, nil
}

// classify maps Vault response codes onto the package sentinels.
func classify(err error) error {
	var respErr *vaultapi.ResponseError
	if !errors.As(err, &respErr) {
		return err
	}

	switch respErr.StatusCode {
	case http.StatusForbidden, http.StatusUnauthorized:
		return errors.Join(ErrPermissionDenied, err)
	case http.StatusNotFound:
		return errors.Join(ErrSecretNotFound, err)
	default:
		return err
	}
}
