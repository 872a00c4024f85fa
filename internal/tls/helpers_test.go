package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testCertOptions configures generateTestCertificate.
type testCertOptions struct {
	serial     *big.Int
	subject    pkix.Name
	rawSubject []byte
	notBefore  time.Time
	notAfter   time.Time
	dnsNames   []string
	uris       []*url.URL
	emails     []string
	ips        []net.IP
	isCA       bool
}

type testCertOption func(*testCertOptions)

func withSerial(serial *big.Int) testCertOption {
	return func(o *testCertOptions) { o.serial = serial }
}

func withSubject(subject pkix.Name) testCertOption {
	return func(o *testCertOptions) { o.subject = subject }
}

func withRawSubject(raw []byte) testCertOption {
	return func(o *testCertOptions) { o.rawSubject = raw }
}

func withValidity(notBefore, notAfter time.Time) testCertOption {
	return func(o *testCertOptions) {
		o.notBefore = notBefore
		o.notAfter = notAfter
	}
}

func withDNSNames(names ...string) testCertOption {
	return func(o *testCertOptions) { o.dnsNames = names }
}

func withURIs(t *testing.T, raw ...string) testCertOption {
	t.Helper()
	uris := make([]*url.URL, 0, len(raw))
	for _, r := range raw {
		u, err := url.Parse(r)
		require.NoError(t, err)
		uris = append(uris, u)
	}
	return func(o *testCertOptions) { o.uris = uris }
}

func withEmails(emails ...string) testCertOption {
	return func(o *testCertOptions) { o.emails = emails }
}

func withIPs(ips ...net.IP) testCertOption {
	return func(o *testCertOptions) { o.ips = ips }
}

// generateTestCertificate creates a self-signed ECDSA certificate and
// returns it parsed, PEM-encoded, and its signing key.
func generateTestCertificate(t *testing.T, opts ...testCertOption) (*x509.Certificate, []byte, crypto.Signer) {
	t.Helper()

	o := &testCertOptions{
		serial: big.NewInt(2),
		subject: pkix.Name{
			CommonName:   "test.example.com",
			Organization: []string{"Test Org"},
		},
		notBefore: time.Now().Add(-1 * time.Hour),
		notAfter:  time.Now().Add(24 * time.Hour),
	}
	for _, opt := range opts {
		opt(o)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          o.serial,
		Subject:               o.subject,
		RawSubject:            o.rawSubject,
		NotBefore:             o.notBefore,
		NotAfter:              o.notAfter,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		DNSNames:              o.dnsNames,
		URIs:                  o.uris,
		EmailAddresses:        o.emails,
		IPAddresses:           o.ips,
		BasicConstraintsValid: true,
		IsCA:                  o.isCA,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pemData := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	return cert, pemData, key
}

// writeTestFile writes data under dir and returns the path.
func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}
