package tls

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"math"
	"time"

	"github.com/vyrodovalexey/tlsutil/internal/buffer"
	"github.com/vyrodovalexey/tlsutil/internal/clock"
)

const secondsPerDay = 24 * 60 * 60

// GeneralNameType selects a class of Subject Alternative Name entries.
type GeneralNameType int

// General name type constants.
const (
	// GeneralNameDNS selects dNSName entries.
	GeneralNameDNS GeneralNameType = iota + 1

	// GeneralNameURI selects uniformResourceIdentifier entries.
	GeneralNameURI

	// GeneralNameEmail selects rfc822Name entries.
	GeneralNameEmail

	// GeneralNameIP selects iPAddress entries.
	GeneralNameIP
)

// String returns the string representation of the general name type.
func (t GeneralNameType) String() string {
	switch t {
	case GeneralNameDNS:
		return "DNS"
	case GeneralNameURI:
		return "URI"
	case GeneralNameEmail:
		return "Email"
	case GeneralNameIP:
		return "IP"
	default:
		return "unknown"
	}
}

// SubjectAltNames returns the certificate's Subject Alternative Names of the
// given type, in the order the certificate lists them. It returns an empty
// slice when the certificate has none of that type.
func SubjectAltNames(cert *x509.Certificate, nameType GeneralNameType) []string {
	names := []string{}
	if cert == nil {
		return names
	}

	switch nameType {
	case GeneralNameDNS:
		names = append(names, cert.DNSNames...)
	case GeneralNameURI:
		for _, uri := range cert.URIs {
			names = append(names, uri.String())
		}
	case GeneralNameEmail:
		names = append(names, cert.EmailAddresses...)
	case GeneralNameIP:
		for _, ip := range cert.IPAddresses {
			names = append(names, ip.String())
		}
	}

	return names
}

// SubjectDN renders the certificate subject in RFC 2253 form, e.g.
// "CN=Test Server,OU=Engineering,O=Example,L=San Francisco,ST=California,C=US".
//
// RDNs are read from the raw encoding and written last to first, as
// RFC 2253 requires; the decoded pkix.Name fields are only used if the raw
// subject cannot be read. Attribute types outside the common set render as
// dotted OIDs.
func SubjectDN(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	return distinguishedName(cert.RawSubject, cert.Subject)
}

// IssuerDN renders the certificate issuer like SubjectDN.
func IssuerDN(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	return distinguishedName(cert.RawIssuer, cert.Issuer)
}

func distinguishedName(raw []byte, parsed pkix.Name) string {
	var rdns pkix.RDNSequence
	rest, err := asn1.Unmarshal(raw, &rdns)
	if err != nil || len(rest) != 0 {
		return parsed.String()
	}
	return formatRDNSequence(rdns)
}

// SerialNumber returns the certificate serial number as lowercase hex, one
// byte per two digits (so "0a", never "a"), without a 0x prefix.
func SerialNumber(cert *x509.Certificate) string {
	if cert == nil || cert.SerialNumber == nil {
		return ""
	}

	raw := cert.SerialNumber.Bytes()
	if len(raw) == 0 {
		return "00"
	}

	serial := hex.EncodeToString(raw)
	if cert.SerialNumber.Sign() < 0 {
		return "-" + serial
	}
	return serial
}

// ValidFrom returns the certificate's NotBefore time in UTC at second resolution.
func ValidFrom(cert *x509.Certificate) time.Time {
	if cert == nil {
		return time.Time{}
	}
	return cert.NotBefore.UTC().Truncate(time.Second)
}

// ExpirationTime returns the certificate's NotAfter time in UTC at second resolution.
func ExpirationTime(cert *x509.Certificate) time.Time {
	if cert == nil {
		return time.Time{}
	}
	return cert.NotAfter.UTC().Truncate(time.Second)
}

// DaysUntilExpiration returns the whole number of days between clk.Now() and
// the certificate's NotAfter, truncated toward zero. The result is negative
// once the certificate has expired.
//
// A nil certificate yields math.MaxInt32, meaning the expiration is unknown
// and must not raise an alarm.
func DaysUntilExpiration(cert *x509.Certificate, clk clock.Clock) int32 {
	if cert == nil {
		return math.MaxInt32
	}
	if clk == nil {
		clk = clock.System{}
	}

	// Second resolution on both sides; Go integer division truncates toward zero.
	days := (cert.NotAfter.Unix() - clk.Now().Unix()) / secondsPerDay

	switch {
	case days > math.MaxInt32:
		return math.MaxInt32
	case days < math.MinInt32:
		return math.MinInt32
	default:
		return int32(days)
	}
}

// Fingerprint returns the SHA-256 of the certificate's DER encoding as
// lowercase hex.
func Fingerprint(cert *x509.Certificate) string {
	if cert == nil {
		return ""
	}
	return hex.EncodeToString(SHA256Digest(buffer.New(cert.Raw)))
}
