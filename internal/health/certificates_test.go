package health

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
	"github.com/vyrodovalexey/tlsutil/internal/tls"
)

func certStatus(name string, state tls.ExpiryState, loaded bool) tls.CertificateStatus {
	s := tls.CertificateStatus{Name: name, State: state}
	if loaded {
		s.Info = &tls.CertificateInfo{Subject: "CN=" + name}
	} else {
		s.Err = errors.New("open " + name + ": no such file or directory")
	}
	return s
}

func TestCertificateCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		statuses        []tls.CertificateStatus
		expectedStatus  Status
		expectedMessage string
	}{
		{
			name:           "no certificates",
			expectedStatus: StatusHealthy,
		},
		{
			name: "all valid",
			statuses: []tls.CertificateStatus{
				certStatus("api", tls.ExpiryStateValid, true),
				certStatus("web", tls.ExpiryStateValid, true),
			},
			expectedStatus: StatusHealthy,
		},
		{
			name: "expiring",
			statuses: []tls.CertificateStatus{
				certStatus("web", tls.ExpiryStateExpiring, true),
				certStatus("api", tls.ExpiryStateExpiring, true),
			},
			expectedStatus:  StatusDegraded,
			expectedMessage: "expiring: api, web",
		},
		{
			name: "expired",
			statuses: []tls.CertificateStatus{
				certStatus("api", tls.ExpiryStateExpired, true),
				certStatus("web", tls.ExpiryStateExpiring, true),
			},
			expectedStatus:  StatusUnhealthy,
			expectedMessage: "expired: api; expiring: web",
		},
		{
			name: "never loaded",
			statuses: []tls.CertificateStatus{
				certStatus("missing", tls.ExpiryStateUnknown, false),
			},
			expectedStatus:  StatusUnhealthy,
			expectedMessage: "not loaded: missing",
		},
		{
			name: "reload error keeps previous certificate",
			statuses: []tls.CertificateStatus{
				func() tls.CertificateStatus {
					s := certStatus("web", tls.ExpiryStateValid, true)
					s.Err = errors.New("reload failed")
					return s
				}(),
			},
			expectedStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			check := CertificateCheck(func() []tls.CertificateStatus { return tt.statuses })()
			assert.Equal(t, tt.expectedStatus, check.Status)
			assert.Equal(t, tt.expectedMessage, check.Message)
		})
	}
}

func certificatePEM(t *testing.T, notBefore, notAfter time.Time) string {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "edge.example.com"},
		NotBefore:    notBefore,
		NotAfter:     notAfter,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	require.NoError(t, err)
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}))
}

func TestCertificateCheck_ExpiredWithinLastDay(t *testing.T) {
	t.Parallel()

	now := time.Unix(2000000000, 0)
	clk := clock.NewSimulated(now)

	monitor, err := tls.NewExpiryMonitor(&tls.MonitorConfig{
		Certificates: []tls.CertificateConfig{
			{Name: "edge", CertData: certificatePEM(t, now.Add(-30*24*time.Hour), now.Add(-time.Hour))},
		},
		WarningDays: 30,
	}, tls.WithMonitorClock(clk))
	require.NoError(t, err)
	t.Cleanup(func() { _ = monitor.Close() })
	require.NoError(t, monitor.Check())

	checker := NewChecker("", clk)
	checker.RegisterCheck("certificates", CertificateCheck(monitor.Snapshot))

	rec := httptest.NewRecorder()
	checker.ReadinessHandler()(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	check := checker.Readiness().Checks["certificates"]
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, "expired: edge", check.Message)
}
