package tls

import (
	"errors"
	"fmt"
)

// Common sentinel errors for certificate and key operations.
var (
	// ErrCertificateNotFound indicates that no certificate is available for a source.
	ErrCertificateNotFound = errors.New("certificate not found")

	// ErrCertificateInvalid indicates that certificate data could not be parsed.
	ErrCertificateInvalid = errors.New("certificate invalid")

	// ErrPublicKeyAbsent indicates an operation on a key that was never imported.
	ErrPublicKeyAbsent = errors.New("public key absent")

	// ErrMonitorClosed indicates that the expiry monitor has been closed.
	ErrMonitorClosed = errors.New("expiry monitor closed")

	// ErrConfigInvalid indicates that the monitor configuration is invalid.
	ErrConfigInvalid = errors.New("invalid TLS configuration")
)

// CertificateError represents a certificate loading or parsing error.
type CertificateError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *CertificateError) Error() string {
	if e.Path != "" {
		if e.Cause != nil {
			return fmt.Sprintf("certificate error at %s: %s: %v", e.Path, e.Message, e.Cause)
		}
		return fmt.Sprintf("certificate error at %s: %s", e.Path, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("certificate error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("certificate error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *CertificateError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target.
func (e *CertificateError) Is(target error) bool {
	_, ok := target.(*CertificateError)
	return ok || errors.Is(e.Cause, target)
}

// NewCertificateError creates a new CertificateError.
func NewCertificateError(path, message string) *CertificateError {
	return &CertificateError{Path: path, Message: message}
}

// NewCertificateErrorWithCause creates a new CertificateError with a cause.
func NewCertificateErrorWithCause(path, message string, cause error) *CertificateError {
	return &CertificateError{Path: path, Message: message, Cause: cause}
}

// ConfigurationError represents a monitor configuration error.
type ConfigurationError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		if e.Cause != nil {
			return fmt.Sprintf("TLS config error at %s: %s: %v", e.Field, e.Message, e.Cause)
		}
		return fmt.Sprintf("TLS config error at %s: %s", e.Field, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("TLS config error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("TLS config error: %s", e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches the target. Every ConfigurationError
// matches ErrConfigInvalid.
func (e *ConfigurationError) Is(target error) bool {
	if errors.Is(target, ErrConfigInvalid) {
		return true
	}
	_, ok := target.(*ConfigurationError)
	return ok || errors.Is(e.Cause, target)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// NewConfigurationErrorWithCause creates a new ConfigurationError with a cause.
func NewConfigurationErrorWithCause(field, message string, cause error) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message, Cause: cause}
}

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
