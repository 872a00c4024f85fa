package tls

import (
	"crypto/tls"
	"crypto/x509"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
	"github.com/vyrodovalexey/tlsutil/internal/observability"
)

// Span attribute keys describing the TLS peer.
const (
	AttrPeerSubject             = attribute.Key("tls.peer.subject")
	AttrPeerSerial              = attribute.Key("tls.peer.serial")
	AttrPeerFingerprint         = attribute.Key("tls.peer.fingerprint")
	AttrPeerSANDNS              = attribute.Key("tls.peer.san.dns")
	AttrPeerSANURI              = attribute.Key("tls.peer.san.uri")
	AttrPeerDaysUntilExpiration = attribute.Key("tls.peer.days_until_expiration")
)

// PeerCertificate returns the leaf certificate presented by the peer, or nil
// when the connection carries none.
func PeerCertificate(state *tls.ConnectionState) *x509.Certificate {
	if state == nil || len(state.PeerCertificates) == 0 {
		return nil
	}
	return state.PeerCertificates[0]
}

// PeerAttributes returns the span attributes describing a peer certificate.
// It returns nil for a nil certificate.
func PeerAttributes(cert *x509.Certificate, clk clock.Clock) []attribute.KeyValue {
	if cert == nil {
		return nil
	}

	return []attribute.KeyValue{
		AttrPeerSubject.String(SubjectDN(cert)),
		AttrPeerSerial.String(SerialNumber(cert)),
		AttrPeerFingerprint.String(Fingerprint(cert)),
		AttrPeerSANDNS.StringSlice(SubjectAltNames(cert, GeneralNameDNS)),
		AttrPeerSANURI.StringSlice(SubjectAltNames(cert, GeneralNameURI)),
		AttrPeerDaysUntilExpiration.Int64(int64(DaysUntilExpiration(cert, clk))),
	}
}

// AnnotateSpan tags span with the peer certificate's identity.
func AnnotateSpan(span trace.Span, cert *x509.Certificate, clk clock.Clock) {
	if span == nil || cert == nil || !span.IsRecording() {
		return
	}
	span.SetAttributes(PeerAttributes(cert, clk)...)
}

// PeerLogFields returns log fields describing a peer certificate.
func PeerLogFields(cert *x509.Certificate) []observability.Field {
	if cert == nil {
		return nil
	}

	return []observability.Field{
		observability.String("peer_subject", SubjectDN(cert)),
		observability.String("peer_serial", SerialNumber(cert)),
		observability.Strings("peer_san_dns", SubjectAltNames(cert, GeneralNameDNS)),
		observability.Strings("peer_san_uri", SubjectAltNames(cert, GeneralNameURI)),
	}
}
