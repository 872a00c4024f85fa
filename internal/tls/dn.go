package tls

import (
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/hex"
	"fmt"
	"strings"
)

// attributeShortNames maps attribute type OIDs to the short names used when
// rendering a distinguished name. Types missing here render as dotted OIDs.
var attributeShortNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.4":                    "SN",
	"2.5.4.5":                    "serialNumber",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.9":                    "street",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"2.5.4.12":                   "title",
	"2.5.4.15":                   "businessCategory",
	"2.5.4.17":                   "postalCode",
	"2.5.4.42":                   "GN",
	"2.5.4.43":                   "initials",
	"2.5.4.44":                   "generationQualifier",
	"2.5.4.46":                   "dnQualifier",
	"2.5.4.65":                   "pseudonym",
	"0.9.2342.19200300.100.1.1":  "UID",
	"0.9.2342.19200300.100.1.25": "DC",
	"1.2.840.113549.1.9.1":       "emailAddress",
}

// formatRDNSequence renders rdns in RFC 2253 order: the last encoded RDN
// first, multi-valued RDNs joined with "+".
func formatRDNSequence(rdns pkix.RDNSequence) string {
	var sb strings.Builder
	for i := len(rdns) - 1; i >= 0; i-- {
		if i < len(rdns)-1 {
			sb.WriteByte(',')
		}
		for j, atv := range rdns[i] {
			if j > 0 {
				sb.WriteByte('+')
			}
			sb.WriteString(attributeName(atv.Type))
			sb.WriteByte('=')
			sb.WriteString(attributeValue(atv.Value))
		}
	}
	return sb.String()
}

func attributeName(oid asn1.ObjectIdentifier) string {
	if name, ok := attributeShortNames[oid.String()]; ok {
		return name
	}
	return oid.String()
}

// attributeValue escapes string values. Anything else is dumped as "#" and
// the hex of its DER encoding.
func attributeValue(value any) string {
	if s, ok := value.(string); ok {
		return escapeAttributeValue(s)
	}
	der, err := asn1.Marshal(value)
	if err != nil {
		return fmt.Sprint(value)
	}
	return "#" + hex.EncodeToString(der)
}

// escapeAttributeValue applies RFC 2253 escaping. Control characters and
// bytes outside ASCII are written as \XX.
func escapeAttributeValue(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, "\\%02X", c)
		case strings.IndexByte(`,+"\<>;`, c) >= 0,
			i == 0 && (c == '#' || c == ' '),
			i == len(s)-1 && c == ' ':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
