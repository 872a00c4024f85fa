package vault

import (
	"errors"
	"fmt"
)

// Common errors for Vault operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("vault: invalid configuration")

	// ErrSecretNotFound indicates nothing is stored at the requested path.
	ErrSecretNotFound = errors.New("vault: secret not found")

	// ErrPermissionDenied indicates the token may not read the path.
	ErrPermissionDenied = errors.New("vault: permission denied")

	// ErrCertificateInvalid indicates the response held no usable certificate.
	ErrCertificateInvalid = errors.New("vault: invalid certificate")
)

// VaultError represents a failed Vault operation.
type VaultError struct {
	Op      string // Operation that failed
	Path    string // Secret path if applicable
	Message string // Additional message
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *VaultError) Error() string {
	msg := "vault " + e.Op
	if e.Path != "" {
		msg += " on path " + e.Path
	}
	msg += ": " + e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *VaultError) Unwrap() error {
	return e.Cause
}

// NewVaultError creates a new VaultError.
func NewVaultError(op, path, message string) *VaultError {
	return &VaultError{Op: op, Path: path, Message: message}
}

// NewVaultErrorWithCause creates a new VaultError with a cause.
func NewVaultErrorWithCause(op, path, message string, cause error) *VaultError {
	return &VaultError{Op: op, Path: path, Message: message, Cause: cause}
}

// ConfigurationError represents a Vault configuration error.
type ConfigurationError struct {
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	prefix := "vault config error"
	if e.Field != "" {
		prefix += " at " + e.Field
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// Is matches any ConfigurationError and ErrInvalidConfig.
func (e *ConfigurationError) Is(target error) bool {
	if target == ErrInvalidConfig {
		return true
	}
	_, ok := target.(*ConfigurationError)
	return ok
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(field, message string) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message}
}

// NewConfigurationErrorWithCause creates a new ConfigurationError with a cause.
func NewConfigurationErrorWithCause(field, message string, cause error) *ConfigurationError {
	return &ConfigurationError{Field: field, Message: message, Cause: cause}
}
