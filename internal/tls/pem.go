package tls

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"os"
)

// ParsePEMCertificates parses every CERTIFICATE block in pemData, in order.
// Other block types are skipped.
func ParsePEMCertificates(pemData []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate

	for len(pemData) > 0 {
		var block *pem.Block
		block, pemData = pem.Decode(pemData)
		if block == nil {
			break
		}

		if block.Type != "CERTIFICATE" {
			continue
		}

		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, NewCertificateErrorWithCause("", "failed to parse certificate", err)
		}

		certs = append(certs, cert)
	}

	if len(certs) == 0 {
		return nil, NewCertificateErrorWithCause("", "no certificates found in PEM data", ErrCertificateNotFound)
	}

	return certs, nil
}

// LoadCertificateFromPEM returns the first certificate in pemData.
func LoadCertificateFromPEM(pemData []byte) (*x509.Certificate, error) {
	certs, err := ParsePEMCertificates(pemData)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// LoadCertificateFromFile returns the first certificate in a PEM file.
func LoadCertificateFromFile(certFile string) (*x509.Certificate, error) {
	data, err := os.ReadFile(certFile) // #nosec G304 -- certificate path from trusted config
	if err != nil {
		return nil, NewCertificateErrorWithCause(certFile, "failed to read certificate file", err)
	}

	cert, err := LoadCertificateFromPEM(data)
	if err != nil {
		return nil, NewCertificateErrorWithCause(certFile, "failed to load certificate", err)
	}

	return cert, nil
}

// CertificateFetcher reads a certificate by serial from a PKI mount.
// A Vault client satisfies it.
type CertificateFetcher interface {
	FetchCertificate(ctx context.Context, mount, serial string) (*x509.Certificate, error)
}

// loadCertificate loads the certificate described by cfg from a local
// source.
func loadCertificate(cfg *CertificateConfig) (*x509.Certificate, error) {
	switch source := cfg.GetEffectiveSource(); source {
	case CertificateSourceFile:
		return LoadCertificateFromFile(cfg.CertFile)
	case CertificateSourceInline:
		return LoadCertificateFromPEM([]byte(cfg.CertData))
	default:
		return nil, NewConfigurationError("source", "unsupported certificate source: "+string(source))
	}
}
