package main

import (
	"bytes"
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quiet keeps the process logger off the test output.
var quiet = []string{"-log-level", "error"}

type result struct {
	code   int
	stdout string
	stderr string
}

func runCLI(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	return runCLIContext(t, context.Background(), stdin, args...)
}

func runCLIContext(t *testing.T, ctx context.Context, stdin string, args ...string) result {
	t.Helper()

	var stdout, stderr bytes.Buffer
	code := run(ctx, append(append([]string{}, quiet...), args...), strings.NewReader(stdin), &stdout, &stderr)
	return result{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeCertificate(t *testing.T, dir, name string, notBefore, notAfter time.Time) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(0x1f),
		Subject:      pkix.Name{CommonName: "cli.example.com"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
		DNSNames:     []string{"cli.example.com", "alt.example.com"},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	return writeFile(t, dir, name, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestRun_Version(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "-version")
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stdout, "tlsutil version dev")
}

func TestRun_Usage(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "commands:")

	res = runCLI(t, "", "frobnicate")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, `unknown command "frobnicate"`)

	res = runCLI(t, "", "-no-such-flag")
	assert.Equal(t, exitUsage, res.code)

	res = runCLI(t, "", "digest", "-h")
	assert.Equal(t, exitOK, res.code)
	assert.Contains(t, res.stderr, "usage: tlsutil digest")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "tlsutil.yaml", []byte("logging:\n  format: xml\n"))
	res := runCLI(t, "", "-config", path, "digest")
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "logging.format")

	res = runCLI(t, "", "-config", filepath.Join(t.TempDir(), "missing.yaml"), "digest")
	assert.Equal(t, exitFailure, res.code)
}

func TestDigest(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "digest")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855  -\n", res.stdout)

	dir := t.TempDir()
	hello := writeFile(t, dir, "hello.txt", []byte("hello"))
	res = runCLI(t, "", "digest", hello)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824  "+hello+"\n", res.stdout)

	res = runCLI(t, "", "digest", filepath.Join(dir, "missing.txt"))
	assert.Equal(t, exitFailure, res.code)
}

func TestHMAC(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "The quick brown fox jumps over the lazy dog", "hmac", "-key", "key")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8  -\n", res.stdout)

	keyFile := writeFile(t, t.TempDir(), "key", []byte("key"))
	res = runCLI(t, "The quick brown fox jumps over the lazy dog", "hmac", "-key-file", keyFile)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.True(t, strings.HasPrefix(res.stdout, "f7bc83f430538424"))

	res = runCLI(t, "", "hmac", "-key", "a", "-key-file", keyFile)
	assert.Equal(t, exitUsage, res.code)
}

func TestInspect(t *testing.T) {
	t.Parallel()

	now := time.Now()
	path := writeCertificate(t, t.TempDir(), "cert.pem", now.Add(-time.Hour), now.Add(10*24*time.Hour+time.Hour))

	res := runCLI(t, "", "inspect", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "subject:               CN=cli.example.com")
	assert.Contains(t, res.stdout, "serial:                1f")
	assert.Contains(t, res.stdout, "days until expiration: 10")
	assert.Contains(t, res.stdout, "dns:                   cli.example.com, alt.example.com")

	res = runCLI(t, "", "inspect", "-json", path)
	require.Equal(t, exitOK, res.code, res.stderr)

	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "1f", infos[0]["serialNumber"])
	assert.Equal(t, "CN=cli.example.com", infos[0]["subject"])
}

func TestInspect_Errors(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "inspect")
	assert.Equal(t, exitUsage, res.code)

	notPEM := writeFile(t, t.TempDir(), "junk.pem", []byte("junk"))
	res = runCLI(t, "", "inspect", notPEM)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "certificate not found")
}

type signingFixture struct {
	dir     string
	pemKey  string
	derKey  string
	jwkKey  string
	message string
	sigHex  string
}

func newSigningFixture(t *testing.T) signingFixture {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	message := "signed payload"
	digest := sha256.Sum256([]byte(message))
	sig, err := key.Sign(rand.Reader, digest[:], crypto.SHA256)
	require.NoError(t, err)

	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	jwkKey, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(t, err)
	jwkJSON, err := json.Marshal(jwkKey)
	require.NoError(t, err)

	dir := t.TempDir()
	return signingFixture{
		dir:     dir,
		pemKey:  writeFile(t, dir, "key.pem", pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})),
		derKey:  writeFile(t, dir, "key.der", der),
		jwkKey:  writeFile(t, dir, "key.jwk", jwkJSON),
		message: message,
		sigHex:  hex.EncodeToString(sig),
	}
}

func TestVerify(t *testing.T) {
	t.Parallel()

	fx := newSigningFixture(t)

	for _, keyFile := range []string{fx.pemKey, fx.derKey, fx.jwkKey} {
		res := runCLI(t, fx.message, "verify", "-key", keyFile, "-signature-hex", fx.sigHex)
		require.Equal(t, exitOK, res.code, "%s: %s", keyFile, res.stderr)
		assert.Equal(t, "OK\n", res.stdout)
	}

	sigFile := writeFile(t, fx.dir, "sig.bin", mustDecodeHex(t, fx.sigHex))
	msgFile := writeFile(t, fx.dir, "msg.txt", []byte(fx.message))
	res := runCLI(t, "", "verify", "-key", fx.pemKey, "-signature", sigFile, msgFile)
	require.Equal(t, exitOK, res.code, res.stderr)
}

func TestVerify_Failures(t *testing.T) {
	t.Parallel()

	fx := newSigningFixture(t)
	textfile := filepath.Join(fx.dir, "verify.prom")

	res := runCLI(t, "tampered payload", "verify", "-key", fx.pemKey, "-signature-hex", fx.sigHex, "-textfile", textfile)
	assert.Equal(t, exitFailure, res.code)
	assert.Equal(t, "FAILED: Failed to verify digest. Error code: 0\n", res.stdout)

	metrics, err := os.ReadFile(textfile)
	require.NoError(t, err)
	assert.Contains(t, string(metrics),
		`tlsutil_tls_signature_verifications_total{algorithm="sha256",status="verify_failed"} 1`)

	res = runCLI(t, fx.message, "verify", "-hash", "md5", "-key", fx.pemKey, "-signature-hex", fx.sigHex)
	assert.Equal(t, exitFailure, res.code)
	assert.Equal(t, "FAILED: md5 is not supported.\n", res.stdout)

	junkKey := writeFile(t, fx.dir, "junk.key", []byte("baddata"))
	res = runCLI(t, fx.message, "verify", "-key", junkKey, "-signature-hex", fx.sigHex)
	assert.Equal(t, exitFailure, res.code)
	assert.Equal(t, "FAILED: Failed to initialize digest verify.\n", res.stdout)
}

func TestVerify_Usage(t *testing.T) {
	t.Parallel()

	fx := newSigningFixture(t)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing key", args: []string{"verify", "-signature-hex", fx.sigHex}},
		{name: "missing signature", args: []string{"verify", "-key", fx.pemKey}},
		{name: "both signatures", args: []string{"verify", "-key", fx.pemKey, "-signature-hex", "00", "-signature", "x"}},
		{name: "two inputs", args: []string{"verify", "-key", fx.pemKey, "-signature-hex", "00", "a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, exitUsage, runCLI(t, "", tt.args...).code)
		})
	}

	res := runCLI(t, "", "verify", "-key", fx.pemKey, "-signature-hex", "zz")
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "invalid -signature-hex")
}

func TestMonitor_Once(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	valid := writeCertificate(t, dir, "valid.pem", now.Add(-time.Hour), now.Add(90*24*time.Hour))
	expired := writeCertificate(t, dir, "expired.pem", now.Add(-10*24*time.Hour), now.Add(-2*24*time.Hour))

	res := runCLI(t, "", "monitor", "-once", valid)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "NAME")
	assert.Contains(t, res.stdout, "valid")
	assert.Contains(t, res.stdout, "CN=cli.example.com")

	res = runCLI(t, "", "monitor", "-once", valid, expired)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stdout, "expired")
	assert.Contains(t, res.stderr, "has expired")

	justExpired := writeCertificate(t, dir, "just-expired.pem", now.Add(-10*24*time.Hour), now.Add(-time.Hour))
	res = runCLI(t, "", "monitor", "-once", justExpired)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "certificate "+justExpired+" has expired")
}

func TestMonitor_OnceVault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	certPEM, err := os.ReadFile(writeCertificate(t, dir, "issuer.pem", now.Add(-time.Hour), now.Add(90*24*time.Hour)))
	require.NoError(t, err)

	vaultServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/v1/pki/cert/ca" || r.Header.Get("X-Vault-Token") != "cli-token" {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"errors":["permission denied"]}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]string{"certificate": string(certPEM)},
		})
	}))
	t.Cleanup(vaultServer.Close)

	writeConfig := func(name, token string) string {
		return writeFile(t, dir, name, []byte(`
vault:
  address: `+vaultServer.URL+`
  token: `+token+`
monitor:
  certificates:
    - name: issuer
      vault:
        mount: pki
        serial: ca
`))
	}

	res := runCLI(t, "", "-config", writeConfig("good.yaml", "cli-token"), "monitor", "-once")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "issuer")
	assert.Contains(t, res.stdout, "CN=cli.example.com")

	res = runCLI(t, "", "-config", writeConfig("denied.yaml", "wrong-token"), "monitor", "-once")
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "failed to fetch certificate from vault")
}

func TestMonitor_NoCertificates(t *testing.T) {
	t.Parallel()

	res := runCLI(t, "", "monitor", "-once")
	assert.Equal(t, exitUsage, res.code)
	assert.Contains(t, res.stderr, "no certificates configured")
}

func TestMonitor_MetricsAddressInUse(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	dir := t.TempDir()
	now := time.Now()
	cert := writeCertificate(t, dir, "upstream.pem", now.Add(-time.Hour), now.Add(90*24*time.Hour))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res := runCLIContext(t, ctx, "", "monitor", "-metrics-address", ln.Addr().String(), cert)
	assert.Equal(t, exitFailure, res.code)
	assert.Contains(t, res.stderr, "failed to listen on "+ln.Addr().String())
}

func TestMonitor_ServeUntilCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()
	writeCertificate(t, dir, "upstream.pem", now.Add(-time.Hour), now.Add(90*24*time.Hour))
	cfgPath := writeFile(t, dir, "tlsutil.yaml", []byte(`
metrics:
  enabled: true
  address: 127.0.0.1:0
monitor:
  certificates:
    - name: upstream
      certFile: upstream.pem
shutdownTimeout: 2s
`))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	res := runCLIContext(t, ctx, "", "-config", cfgPath, "monitor")
	assert.Equal(t, exitOK, res.code, res.stderr)
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TLSUTIL_TEST_ENV_SET", "value")
	t.Setenv("TLSUTIL_TEST_ENV_EMPTY", "")

	assert.Equal(t, "value", getEnvOrDefault("TLSUTIL_TEST_ENV_SET", "default"))
	assert.Equal(t, "default", getEnvOrDefault("TLSUTIL_TEST_ENV_EMPTY", "default"))
	assert.Equal(t, "default", getEnvOrDefault("TLSUTIL_TEST_ENV_UNSET", "default"))
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value    string
		fallback bool
		expected bool
	}{
		{"true", false, true},
		{"YES", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
		{"", false, false},
	}

	for _, tt := range tests {
		t.Setenv("TLSUTIL_TEST_BOOL", tt.value)
		assert.Equal(t, tt.expected, getEnvBool("TLSUTIL_TEST_BOOL", tt.fallback), tt.value)
	}
}

func mustDecodeHex(t *testing.T, s string) []byte {
	t.Helper()

	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}
