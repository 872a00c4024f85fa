package tls

import (
	"crypto/x509"
	"time"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
)

// CertificateEventType represents the type of certificate event.
type CertificateEventType int

// Certificate event type constants.
const (
	// CertificateEventLoaded indicates a certificate was initially loaded.
	CertificateEventLoaded CertificateEventType = iota

	// CertificateEventReloaded indicates a certificate was reloaded.
	CertificateEventReloaded

	// CertificateEventExpiring indicates a certificate is about to expire.
	CertificateEventExpiring

	// CertificateEventExpired indicates a certificate is past its NotAfter.
	CertificateEventExpired

	// CertificateEventError indicates an error occurred during certificate operations.
	CertificateEventError
)

// String returns the string representation of the event type.
func (t CertificateEventType) String() string {
	switch t {
	case CertificateEventLoaded:
		return "loaded"
	case CertificateEventReloaded:
		return "reloaded"
	case CertificateEventExpiring:
		return "expiring"
	case CertificateEventExpired:
		return "expired"
	case CertificateEventError:
		return "error"
	default:
		return "unknown"
	}
}

// CertificateEvent represents an event from the expiry monitor.
type CertificateEvent struct {
	// Type is the type of event.
	Type CertificateEventType

	// Name is the configured name of the certificate.
	Name string

	// Certificate is the certificate associated with the event (nil for errors).
	Certificate *x509.Certificate

	// DaysUntilExpiration is the day count at the time of the event.
	DaysUntilExpiration int32

	// Error is the error associated with the event (for CertificateEventError).
	Error error

	// Message provides additional context about the event.
	Message string
}

// ExpiryState classifies a certificate by its remaining validity.
type ExpiryState string

// Expiry state constants.
const (
	ExpiryStateValid    ExpiryState = "valid"
	ExpiryStateExpiring ExpiryState = "expiring"
	ExpiryStateExpired  ExpiryState = "expired"
	ExpiryStateUnknown  ExpiryState = "unknown"
)

// ClassifyExpiry maps a day count onto an ExpiryState given the warning
// threshold in days.
func ClassifyExpiry(days, warningDays int32) ExpiryState {
	switch {
	case days < 0:
		return ExpiryStateExpired
	case days <= warningDays:
		return ExpiryStateExpiring
	default:
		return ExpiryStateValid
	}
}

// CertificateExpiryState classifies cert at clk's current time. A
// certificate is expired from its NotAfter instant on, even while the
// truncated day count is still zero.
func CertificateExpiryState(cert *x509.Certificate, clk clock.Clock, warningDays int32) ExpiryState {
	if cert != nil && !clk.Now().Before(cert.NotAfter) {
		return ExpiryStateExpired
	}
	return ClassifyExpiry(DaysUntilExpiration(cert, clk), warningDays)
}

// CertificateInfo contains identity metadata about a certificate.
type CertificateInfo struct {
	// Subject is the certificate subject in RFC 2253 form.
	Subject string `json:"subject" yaml:"subject"`

	// Issuer is the certificate issuer in RFC 2253 form.
	Issuer string `json:"issuer" yaml:"issuer"`

	// SerialNumber is the certificate serial number in lowercase hex.
	SerialNumber string `json:"serialNumber" yaml:"serialNumber"`

	// Fingerprint is the SHA-256 of the DER encoding in lowercase hex.
	Fingerprint string `json:"fingerprint" yaml:"fingerprint"`

	// NotBefore is when the certificate becomes valid.
	NotBefore time.Time `json:"notBefore" yaml:"notBefore"`

	// NotAfter is when the certificate expires.
	NotAfter time.Time `json:"notAfter" yaml:"notAfter"`

	// DaysUntilExpiration is the whole number of days left at extraction time.
	DaysUntilExpiration int32 `json:"daysUntilExpiration" yaml:"daysUntilExpiration"`

	// DNSNames are the DNS Subject Alternative Names.
	DNSNames []string `json:"dnsNames" yaml:"dnsNames"`

	// URIs are the URI Subject Alternative Names.
	URIs []string `json:"uris" yaml:"uris"`

	// EmailAddresses are the email Subject Alternative Names.
	EmailAddresses []string `json:"emailAddresses,omitempty" yaml:"emailAddresses,omitempty"`

	// IPAddresses are the IP Subject Alternative Names.
	IPAddresses []string `json:"ipAddresses,omitempty" yaml:"ipAddresses,omitempty"`

	// IsCA indicates if this is a CA certificate.
	IsCA bool `json:"isCA" yaml:"isCA"`
}

// ExtractCertificateInfo extracts metadata from a certificate, computing
// the day count against clk.
func ExtractCertificateInfo(cert *x509.Certificate, clk clock.Clock) *CertificateInfo {
	if cert == nil {
		return nil
	}

	return &CertificateInfo{
		Subject:             SubjectDN(cert),
		Issuer:              IssuerDN(cert),
		SerialNumber:        SerialNumber(cert),
		Fingerprint:         Fingerprint(cert),
		NotBefore:           ValidFrom(cert),
		NotAfter:            ExpirationTime(cert),
		DaysUntilExpiration: DaysUntilExpiration(cert, clk),
		DNSNames:            SubjectAltNames(cert, GeneralNameDNS),
		URIs:                SubjectAltNames(cert, GeneralNameURI),
		EmailAddresses:      nilIfEmpty(SubjectAltNames(cert, GeneralNameEmail)),
		IPAddresses:         nilIfEmpty(SubjectAltNames(cert, GeneralNameIP)),
		IsCA:                cert.IsCA,
	}
}

func nilIfEmpty(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return s
}

// CertificateStatus is a point-in-time view of a monitored certificate.
type CertificateStatus struct {
	// Name is the configured name of the certificate.
	Name string

	// Info is the certificate metadata, nil if the certificate failed to load.
	Info *CertificateInfo

	// State classifies the remaining validity.
	State ExpiryState

	// LastChecked is when the status was computed, per the monitor's clock.
	LastChecked time.Time

	// Err is the last load error, if any.
	Err error
}
