package tls

import (
	"crypto/x509"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
)

// DefaultNamespace is the metrics namespace used when none is given.
const DefaultNamespace = "tlsutil"

// Metrics holds Prometheus metrics for certificate and signature operations.
type Metrics struct {
	certificateDays        *prometheus.GaugeVec
	certificateExpiry      *prometheus.GaugeVec
	certificateReload      *prometheus.CounterVec
	signatureVerifications *prometheus.CounterVec

	registry *prometheus.Registry
	mu       sync.Mutex
}

// MetricsOption is a functional option for configuring Metrics.
type MetricsOption func(*Metrics)

// WithRegistry sets a custom Prometheus registry.
func WithRegistry(registry *prometheus.Registry) MetricsOption {
	return func(m *Metrics) {
		m.registry = registry
	}
}

// NewMetrics creates a new Metrics instance with the given namespace.
func NewMetrics(namespace string, opts ...MetricsOption) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{}

	for _, opt := range opts {
		opt(m)
	}

	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	m.certificateDays = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "certificate_days_until_expiration",
			Help:      "Whole days until certificate expiration, negative once expired",
		},
		[]string{"name", "subject", "serial"},
	)

	m.certificateExpiry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "certificate_expiry_seconds",
			Help:      "Time until certificate expiry in seconds",
		},
		[]string{"name"},
	)

	m.certificateReload = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "certificate_reload_total",
			Help:      "Total number of certificate reload attempts by status",
		},
		[]string{"status"},
	)

	m.signatureVerifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tls",
			Name:      "signature_verifications_total",
			Help:      "Total number of signature verifications by hash algorithm and status",
		},
		[]string{"algorithm", "status"},
	)

	m.registry.MustRegister(
		m.certificateDays,
		m.certificateExpiry,
		m.certificateReload,
		m.signatureVerifications,
	)

	return m
}

// Init pre-initializes the counter label combinations with zero values so
// they appear in /metrics output before the first event. It is idempotent.
func (m *Metrics) Init() {
	if m == nil {
		return
	}
	for _, status := range []string{"success", "failure"} {
		m.certificateReload.WithLabelValues(status)
	}
	for _, algorithm := range SupportedHashNames() {
		for _, status := range []VerificationStatus{VerificationOK, VerificationInitFailed, VerificationFailed} {
			m.signatureVerifications.WithLabelValues(algorithm, status.String())
		}
	}
}

// UpdateCertificateExpiry sets the expiry gauges for the named certificate.
// Series left over from a previous certificate under the same name are
// removed first, so a reload with a new serial does not leave a stale series.
func (m *Metrics) UpdateCertificateExpiry(name string, cert *x509.Certificate, clk clock.Clock) {
	if cert == nil {
		return
	}
	if clk == nil {
		clk = clock.System{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.certificateDays.DeletePartialMatch(prometheus.Labels{"name": name})
	m.certificateDays.WithLabelValues(name, SubjectDN(cert), SerialNumber(cert)).
		Set(float64(DaysUntilExpiration(cert, clk)))

	m.certificateExpiry.WithLabelValues(name).Set(cert.NotAfter.Sub(clk.Now()).Seconds())
}

// RemoveCertificate drops every series for the named certificate.
func (m *Metrics) RemoveCertificate(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.certificateDays.DeletePartialMatch(prometheus.Labels{"name": name})
	m.certificateExpiry.DeleteLabelValues(name)
}

// RecordCertificateReload records a certificate reload attempt.
func (m *Metrics) RecordCertificateReload(success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.certificateReload.WithLabelValues(status).Inc()
}

// RecordSignatureVerification records the outcome of a signature verification.
func (m *Metrics) RecordSignatureVerification(algorithm string, status VerificationStatus) {
	m.signatureVerifications.WithLabelValues(algorithm, status.String()).Inc()
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.certificateDays.Describe(ch)
	m.certificateExpiry.Describe(ch)
	m.certificateReload.Describe(ch)
	m.signatureVerifications.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.certificateDays.Collect(ch)
	m.certificateExpiry.Collect(ch)
	m.certificateReload.Collect(ch)
	m.signatureVerifications.Collect(ch)
}

// NopMetrics is a no-op implementation of metrics for testing.
type NopMetrics struct{}

// NewNopMetrics creates a new NopMetrics instance.
func NewNopMetrics() *NopMetrics {
	return &NopMetrics{}
}

// UpdateCertificateExpiry is a no-op.
func (m *NopMetrics) UpdateCertificateExpiry(_ string, _ *x509.Certificate, _ clock.Clock) {}

// RemoveCertificate is a no-op.
func (m *NopMetrics) RemoveCertificate(_ string) {}

// RecordCertificateReload is a no-op.
func (m *NopMetrics) RecordCertificateReload(_ bool) {}

// RecordSignatureVerification is a no-op.
func (m *NopMetrics) RecordSignatureVerification(_ string, _ VerificationStatus) {}

// MetricsRecorder defines the interface for recording certificate metrics.
type MetricsRecorder interface {
	UpdateCertificateExpiry(name string, cert *x509.Certificate, clk clock.Clock)
	RemoveCertificate(name string)
	RecordCertificateReload(success bool)
	RecordSignatureVerification(algorithm string, status VerificationStatus)
}

// Ensure implementations satisfy the interface.
var (
	_ MetricsRecorder      = (*Metrics)(nil)
	_ MetricsRecorder      = (*NopMetrics)(nil)
	_ prometheus.Collector = (*Metrics)(nil)
)
