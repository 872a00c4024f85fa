// Package tls provides certificate introspection and payload verification
// for a proxy's TLS layer.
//
// Certificates arrive already parsed as *x509.Certificate and are only
// borrowed: no function here copies, mutates or retains them.
//
//   - Identity extraction: SubjectDN, IssuerDN, SubjectAltNames, SerialNumber,
//     ValidFrom, ExpirationTime, DaysUntilExpiration and Fingerprint
//   - Digests: SHA256Digest over a fragmented buffer and SHA256HMAC
//   - Signatures: ImportPublicKey (DER SubjectPublicKeyInfo), ImportPublicKeyJWK,
//     ImportPublicKeyPEM and VerifySignature
//   - Expiry monitoring: ExpiryMonitor with Prometheus gauges, fsnotify reload of
//     certificate files and periodic refresh of Vault PKI certificates
//   - Peer identity: OpenTelemetry span attributes and log fields
//
// # Signature Verification
//
// VerifySignature never returns an error. Every outcome is described by a
// VerificationResult whose Message is empty iff OK is true:
//
//	key := tls.ImportPublicKey(der)
//	res := tls.VerifySignature("sha256", key, sig, payload)
//	if !res.OK {
//	    logger.Warn("signature rejected", observability.String("reason", res.Message))
//	}
//
// # Days Until Expiration
//
// DaysUntilExpiration takes a clock.Clock so tests can pin the current time.
// A nil certificate yields math.MaxInt32, so "unknown" never trips an alarm.
//
// # Metrics
//
// The package exposes Prometheus metrics for monitoring:
//
//   - tlsutil_tls_certificate_days_until_expiration: Whole days left per certificate
//   - tlsutil_tls_certificate_expiry_seconds: Time until certificate expiry
//   - tlsutil_tls_certificate_reload_total: Certificate reload attempts by status
//   - tlsutil_tls_signature_verifications_total: Verifications by algorithm and status
package tls
