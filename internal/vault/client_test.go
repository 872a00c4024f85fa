package vault

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/tlsutil/internal/observability"
)

func testCertificatePEM(t *testing.T) (*x509.Certificate, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(0x1767),
		Subject:      pkix.Name{CommonName: "Test CA"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		IsCA:         true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return cert, string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

// vaultResponse writes a Vault API JSON body.
func vaultResponse(t *testing.T, w http.ResponseWriter, status int, body map[string]interface{}) {
	t.Helper()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(body))
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Config)) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &Config{Address: server.URL, Token: "test-token", Timeout: 5 * time.Second}
	for _, m := range mutate {
		m(cfg)
	}

	client, err := New(cfg, observability.NopLogger())
	require.NoError(t, err)
	return client
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "negative timeout", cfg: &Config{Address: "http://127.0.0.1:8200", Timeout: -time.Second}, wantErr: true},
		{
			name:    "client cert without key",
			cfg:     &Config{Address: "http://127.0.0.1:8200", TLS: &TLSConfig{ClientCert: "client.pem"}},
			wantErr: true,
		},
		{
			name:    "missing CA file",
			cfg:     &Config{Address: "https://127.0.0.1:8200", TLS: &TLSConfig{CACert: "/nonexistent/ca.pem"}},
			wantErr: true,
		},
		{name: "address and token", cfg: &Config{Address: "http://127.0.0.1:8200", Token: "t"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, err := New(tt.cfg, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "http://127.0.0.1:8200", client.Address())
		})
	}
}

func TestConfig_GetTimeout(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultTimeout, (&Config{}).GetTimeout())
	assert.Equal(t, 5*time.Second, (&Config{Timeout: 5 * time.Second}).GetTimeout())
}

func TestClient_FetchCertificate(t *testing.T) {
	t.Parallel()

	want, certPEM := testCertificatePEM(t)

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/pki/cert/17:67", r.URL.Path)
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		assert.Equal(t, "team-a", r.Header.Get("X-Vault-Namespace"))
		vaultResponse(t, w, http.StatusOK, map[string]interface{}{
			"data": map[string]interface{}{
				"certificate":     certPEM,
				"ca_chain":        []string{certPEM},
				"issuer_id":       "5b4d6f0e",
				"revocation_time": 0,
			},
		})
	}, func(cfg *Config) { cfg.Namespace = "team-a" })

	cert, err := client.FetchCertificate(context.Background(), "/pki/", "17:67")
	require.NoError(t, err)
	assert.Equal(t, want.Raw, cert.Raw)
}

func TestClient_FetchCertificate_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mount   string
		serial  string
		status  int
		body    map[string]interface{}
		wantErr error
		wantMsg string
	}{
		{
			name:    "missing mount",
			mount:   "",
			serial:  "ca",
			wantMsg: "mount is required",
		},
		{
			name:    "missing serial",
			mount:   "pki",
			serial:  "",
			wantMsg: "serial is required",
		},
		{
			name:    "not found",
			mount:   "pki",
			serial:  "ca",
			status:  http.StatusNotFound,
			body:    map[string]interface{}{"errors": []string{}},
			wantErr: ErrSecretNotFound,
			wantMsg: "no data in response",
		},
		{
			name:    "permission denied",
			mount:   "pki",
			serial:  "ca",
			status:  http.StatusForbidden,
			body:    map[string]interface{}{"errors": []string{"permission denied"}},
			wantErr: ErrPermissionDenied,
			wantMsg: "failed to read certificate",
		},
		{
			name:    "certificate field missing",
			mount:   "pki",
			serial:  "ca",
			status:  http.StatusOK,
			body:    map[string]interface{}{"data": map[string]interface{}{"issuer_id": "5b4d6f0e"}},
			wantErr: ErrCertificateInvalid,
			wantMsg: "certificate not found in response",
		},
		{
			name:    "certificate not PEM",
			mount:   "pki",
			serial:  "ca",
			status:  http.StatusOK,
			body:    map[string]interface{}{"data": map[string]interface{}{"certificate": "not pem"}},
			wantErr: ErrCertificateInvalid,
			wantMsg: "response certificate is not PEM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				vaultResponse(t, w, tt.status, tt.body)
			})

			_, err := client.FetchCertificate(context.Background(), tt.mount, tt.serial)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Contains(t, err.Error(), tt.wantMsg)

			var vaultErr *VaultError
			require.ErrorAs(t, err, &vaultErr)
			assert.Equal(t, "pki_read_cert", vaultErr.Op)
		})
	}
}

func TestVaultError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *VaultError
		want string
	}{
		{
			name: "without path",
			err:  NewVaultError("init", "", "failed"),
			want: "vault init: failed",
		},
		{
			name: "with path and cause",
			err:  NewVaultErrorWithCause("pki_read_cert", "pki/cert/ca", "failed", ErrSecretNotFound),
			want: "vault pki_read_cert on path pki/cert/ca: failed: vault: secret not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}
