package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	// Register the digest implementations referenced through crypto.Hash.
	_ "crypto/sha256"

	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// Verification failure messages. They are matched verbatim by callers.
const (
	msgUnsupportedAlgorithm = "%s is not supported."
	msgInitFailed           = "Failed to initialize digest verify."
	msgVerifyFailed         = "Failed to verify digest. Error code: %d"
)

// errDigestSignatureMismatch is returned by the digest verifiers when the
// signature does not authenticate the digest.
var errDigestSignatureMismatch = errors.New("signature does not match digest")

// supportedHashes is the set of digest algorithms accepted by VerifySignature.
var supportedHashes = map[string]crypto.Hash{
	"sha256": crypto.SHA256,
}

// VerificationStatus classifies the outcome of a signature verification.
type VerificationStatus int

// Verification status constants.
const (
	// VerificationOK means the signature authenticates the message.
	VerificationOK VerificationStatus = iota

	// VerificationUnsupportedAlgorithm means the hash algorithm name is not supported.
	VerificationUnsupportedAlgorithm

	// VerificationInitFailed means the key is absent or cannot verify digests.
	VerificationInitFailed

	// VerificationFailed means the signature does not authenticate the message.
	VerificationFailed
)

// String returns the string representation of the verification status.
func (s VerificationStatus) String() string {
	switch s {
	case VerificationOK:
		return "ok"
	case VerificationUnsupportedAlgorithm:
		return "unsupported_algorithm"
	case VerificationInitFailed:
		return "init_failed"
	case VerificationFailed:
		return "verify_failed"
	default:
		return "unknown"
	}
}

// VerificationResult is the outcome of VerifySignature. A failed
// verification is a normal result, not an error.
type VerificationResult struct {
	// OK is true when the signature is valid. Message is empty iff OK is true.
	OK bool

	// Message describes the failure.
	Message string

	// Code is the backend's error code for VerificationFailed results.
	// It is 0 when the backend supplies none.
	Code int

	// Status classifies the result for programmatic dispatch.
	Status VerificationStatus
}

// PublicKey is an imported public key. A nil *PublicKey represents a key
// that could not be imported.
type PublicKey struct {
	key crypto.PublicKey
}

// NewPublicKey wraps an already-parsed public key. It returns nil for a nil key.
func NewPublicKey(key crypto.PublicKey) *PublicKey {
	if key == nil {
		return nil
	}
	return &PublicKey{key: key}
}

// Key returns the underlying public key.
func (k *PublicKey) Key() crypto.PublicKey {
	if k == nil {
		return nil
	}
	return k.key
}

// Algorithm returns the key algorithm name ("RSA", "ECDSA", "Ed25519").
func (k *PublicKey) Algorithm() string {
	if k == nil {
		return ""
	}
	switch k.key.(type) {
	case *rsa.PublicKey:
		return "RSA"
	case *ecdsa.PublicKey:
		return "ECDSA"
	case ed25519.PublicKey:
		return "Ed25519"
	default:
		return "unknown"
	}
}

// DER returns the key encoded as a DER SubjectPublicKeyInfo.
func (k *PublicKey) DER() ([]byte, error) {
	if k == nil || k.key == nil {
		return nil, ErrPublicKeyAbsent
	}
	return x509.MarshalPKIXPublicKey(k.key)
}

// Verify is shorthand for VerifySignature(hashName, k, signature, message).
func (k *PublicKey) Verify(hashName string, signature, message []byte) VerificationResult {
	return VerifySignature(hashName, k, signature, message)
}

// ImportPublicKey parses a DER-encoded SubjectPublicKeyInfo. Only the first
// DER element is read; bytes after it are ignored. It returns nil when the
// input is not a supported public key.
func ImportPublicKey(der []byte) *PublicKey {
	input := cryptobyte.String(der)

	var spki cryptobyte.String
	if !input.ReadASN1Element(&spki, cryptobyte_asn1.SEQUENCE) {
		return nil
	}

	key, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return nil
	}

	return NewPublicKey(key)
}

// HashFunction looks up a supported digest algorithm by name. The lookup
// ignores ASCII case.
func HashFunction(name string) (crypto.Hash, bool) {
	hash, ok := supportedHashes[strings.ToLower(name)]
	return hash, ok
}

// SupportedHashNames returns the names accepted by VerifySignature.
func SupportedHashNames() []string {
	names := make([]string, 0, len(supportedHashes))
	for name := range supportedHashes {
		names = append(names, name)
	}
	return names
}

// digestVerifier checks a signature over a precomputed digest.
type digestVerifier func(hash crypto.Hash, digest, signature []byte) error

// verifierFor returns the digest verifier for the key type, if the key type
// can be combined with a separate digest.
func verifierFor(key crypto.PublicKey) (digestVerifier, bool) {
	switch pub := key.(type) {
	case *rsa.PublicKey:
		return func(hash crypto.Hash, digest, signature []byte) error {
			return rsa.VerifyPKCS1v15(pub, hash, digest, signature)
		}, true
	case *ecdsa.PublicKey:
		return func(_ crypto.Hash, digest, signature []byte) error {
			if !ecdsa.VerifyASN1(pub, digest, signature) {
				return errDigestSignatureMismatch
			}
			return nil
		}, true
	default:
		// Ed25519 signs the message itself and cannot be paired with a digest.
		return nil, false
	}
}

// VerifySignature reports whether signature authenticates message under key
// using the named hash algorithm. RSA keys use PKCS #1 v1.5, ECDSA keys use
// ASN.1 DER signatures.
//
// It never panics and never returns an error: every outcome, including
// malformed input, is described by the returned VerificationResult.
func VerifySignature(hashName string, key *PublicKey, signature, message []byte) (result VerificationResult) {
	hash, ok := HashFunction(hashName)
	if !ok {
		return VerificationResult{
			Message: fmt.Sprintf(msgUnsupportedAlgorithm, hashName),
			Status:  VerificationUnsupportedAlgorithm,
		}
	}

	if key == nil || key.key == nil {
		return initFailedResult()
	}

	verify, ok := verifierFor(key.key)
	if !ok {
		return initFailedResult()
	}

	defer func() {
		if r := recover(); r != nil {
			result = verifyFailedResult(0)
		}
	}()

	h := hash.New()
	_, _ = h.Write(message)

	if err := verify(hash, h.Sum(nil), signature); err != nil {
		return verifyFailedResult(backendErrorCode(err))
	}

	return VerificationResult{OK: true, Status: VerificationOK}
}

func initFailedResult() VerificationResult {
	return VerificationResult{
		Message: msgInitFailed,
		Status:  VerificationInitFailed,
	}
}

func verifyFailedResult(code int) VerificationResult {
	return VerificationResult{
		Message: fmt.Sprintf(msgVerifyFailed, code),
		Code:    code,
		Status:  VerificationFailed,
	}
}

// backendError is implemented by backend errors that carry a numeric code.
type backendError interface {
	Code() int
}

// backendErrorCode extracts the numeric code from a backend error. The
// standard library backend reports none, which maps to 0.
func backendErrorCode(err error) int {
	var coded backendError
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return 0
}
