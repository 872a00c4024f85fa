package tls

import (
	"context"
	"crypto/x509"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/vyrodovalexey/tlsutil/internal/clock"
	"github.com/vyrodovalexey/tlsutil/internal/observability"
)

// DefaultWarningInterval is the minimum time between two expiry warnings
// logged for the same certificate.
const DefaultWarningInterval = 24 * time.Hour

const eventBufferSize = 64

// monitoredCertificate is the monitor's state for one configured certificate.
type monitoredCertificate struct {
	config      CertificateConfig
	cert        *x509.Certificate
	state       ExpiryState
	days        int32
	lastChecked time.Time
	err         error
	warn        *rate.Sometimes
}

// ExpiryMonitor tracks the expiration of a set of certificates. It
// publishes day counts as Prometheus gauges, logs throttled warnings for
// certificates inside the warning window, reloads file sources when they
// change on disk and refreshes vault sources every check interval.
type ExpiryMonitor struct {
	config          *MonitorConfig
	logger          observability.Logger
	metrics         MetricsRecorder
	clock           clock.Clock
	fetcher         CertificateFetcher
	warningInterval time.Duration

	stateMu sync.RWMutex
	entries map[string]*monitoredCertificate
	order   []string

	watcher   *fsnotify.Watcher
	eventCh   chan CertificateEvent
	stopCh    chan struct{}
	stoppedCh chan struct{}

	mu      sync.RWMutex
	closed  bool
	started bool
}

// MonitorOption is a functional option for configuring ExpiryMonitor.
type MonitorOption func(*ExpiryMonitor)

// WithMonitorLogger sets the logger for the monitor.
func WithMonitorLogger(logger observability.Logger) MonitorOption {
	return func(m *ExpiryMonitor) {
		m.logger = logger
	}
}

// WithMonitorMetrics sets the metrics recorder for the monitor.
func WithMonitorMetrics(metrics MetricsRecorder) MonitorOption {
	return func(m *ExpiryMonitor) {
		m.metrics = metrics
	}
}

// WithMonitorClock sets the time source used to compute day counts.
func WithMonitorClock(clk clock.Clock) MonitorOption {
	return func(m *ExpiryMonitor) {
		m.clock = clk
	}
}

// WithCertificateFetcher sets the client used for vault certificate sources.
func WithCertificateFetcher(fetcher CertificateFetcher) MonitorOption {
	return func(m *ExpiryMonitor) {
		m.fetcher = fetcher
	}
}

// WithWarningInterval sets the minimum time between repeated warnings for
// the same certificate.
func WithWarningInterval(interval time.Duration) MonitorOption {
	return func(m *ExpiryMonitor) {
		m.warningInterval = interval
	}
}

// NewExpiryMonitor creates a monitor and loads every configured certificate.
// It fails if the configuration is invalid or a certificate cannot be loaded.
func NewExpiryMonitor(config *MonitorConfig, opts ...MonitorOption) (*ExpiryMonitor, error) {
	if config == nil {
		return nil, NewConfigurationError("config", "monitor configuration is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &ExpiryMonitor{
		config:          config.withDefaults(),
		logger:          observability.NopLogger(),
		metrics:         NewNopMetrics(),
		clock:           clock.NewSystem(),
		warningInterval: DefaultWarningInterval,
		entries:         make(map[string]*monitoredCertificate, len(config.Certificates)),
		eventCh:         make(chan CertificateEvent, eventBufferSize),
		stopCh:          make(chan struct{}),
		stoppedCh:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.config.UsesVault() && m.fetcher == nil {
		return nil, NewConfigurationError("certificates", "vault certificate source requires a certificate fetcher")
	}

	for _, certCfg := range m.config.Certificates {
		cert, err := m.load(context.Background(), &certCfg)
		if err != nil {
			return nil, WrapError(err, "failed to load certificate "+certCfg.Name)
		}

		m.entries[certCfg.Name] = &monitoredCertificate{
			config: certCfg,
			cert:   cert,
			state:  ExpiryStateUnknown,
			days:   DaysUntilExpiration(cert, m.clock),
			warn:   m.newWarningLimiter(),
		}
		m.order = append(m.order, certCfg.Name)

		m.logger.Info("certificate loaded",
			observability.String("name", certCfg.Name),
			observability.String("subject", SubjectDN(cert)),
			observability.String("serial", SerialNumber(cert)),
			observability.Time("notAfter", ExpirationTime(cert)),
		)
	}

	return m, nil
}

func (m *ExpiryMonitor) newWarningLimiter() *rate.Sometimes {
	return &rate.Sometimes{First: 1, Interval: m.warningInterval}
}

// Start evaluates every certificate once, then keeps re-evaluating them
// every check interval until ctx is canceled or Close is called. With Watch
// enabled it also reloads file sources when they change.
func (m *ExpiryMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	for _, name := range m.order {
		cert, _ := m.Certificate(name)
		m.sendEvent(CertificateEvent{
			Type:        CertificateEventLoaded,
			Name:        name,
			Certificate: cert,
			Message:     "certificate loaded",
		})
	}

	if m.config.Watch {
		if err := m.startWatcher(); err != nil {
			close(m.stoppedCh)
			return err
		}
	}

	m.check()

	go m.loop(ctx)

	return nil
}

func (m *ExpiryMonitor) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapError(err, "failed to create file watcher")
	}

	watched := make(map[string]struct{})
	for _, name := range m.order {
		cfg := m.entries[name].config
		if cfg.GetEffectiveSource() != CertificateSourceFile {
			continue
		}

		dir := filepath.Dir(cfg.CertFile)
		if _, ok := watched[dir]; ok {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return WrapError(err, "failed to watch certificate directory")
		}
		watched[dir] = struct{}{}

		m.logger.Info("watching certificate directory",
			observability.String("path", dir),
		)
	}

	m.watcher = watcher
	return nil
}

// loop runs the periodic checks and handles file change events.
func (m *ExpiryMonitor) loop(ctx context.Context) {
	defer close(m.stoppedCh)

	ticker := time.NewTicker(m.config.CheckInterval)
	defer ticker.Stop()

	var (
		fileEvents <-chan fsnotify.Event
		fileErrors <-chan error
	)
	if m.watcher != nil {
		fileEvents = m.watcher.Events
		fileErrors = m.watcher.Errors
	}

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("expiry monitor stopped due to context cancellation")
			return

		case <-m.stopCh:
			m.logger.Info("expiry monitor stopped")
			return

		case <-ticker.C:
			if m.config.UsesVault() {
				m.reload(ctx, CertificateSourceVault)
			}
			m.check()

		case event, ok := <-fileEvents:
			if !ok {
				fileEvents = nil
				continue
			}
			debounceTimer, debounceCh = m.handleFileEvent(event, debounceTimer, debounceCh)

		case <-debounceCh:
			debounceCh = nil
			m.reload(ctx, CertificateSourceFile)
			m.check()

		case err, ok := <-fileErrors:
			if !ok {
				fileErrors = nil
				continue
			}
			m.logger.Error("file watcher error", observability.Error(err))
			m.sendEvent(CertificateEvent{
				Type:    CertificateEventError,
				Error:   err,
				Message: "file watcher error",
			})
		}
	}
}

// handleFileEvent restarts the debounce timer for writes to a monitored file.
func (m *ExpiryMonitor) handleFileEvent(
	event fsnotify.Event,
	debounceTimer *time.Timer,
	debounceCh <-chan time.Time,
) (timer *time.Timer, ch <-chan time.Time) {
	if !m.isRelevantFile(filepath.Clean(event.Name)) {
		return debounceTimer, debounceCh
	}

	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return debounceTimer, debounceCh
	}

	m.logger.Debug("certificate file changed",
		observability.String("path", event.Name),
		observability.String("op", event.Op.String()),
	)

	if debounceTimer != nil {
		debounceTimer.Stop()
	}
	debounceTimer = time.NewTimer(m.config.DebounceDelay)
	return debounceTimer, debounceTimer.C
}

func (m *ExpiryMonitor) isRelevantFile(cleanPath string) bool {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	for _, entry := range m.entries {
		cfg := entry.config
		if cfg.GetEffectiveSource() == CertificateSourceFile && cleanPath == filepath.Clean(cfg.CertFile) {
			return true
		}
	}
	return false
}

// reload re-reads every certificate of the given source. A certificate that
// fails to load keeps its previous value.
func (m *ExpiryMonitor) reload(ctx context.Context, source CertificateSource) {
	m.logger.Info("reloading certificates", observability.String("source", source.String()))

	for _, name := range m.order {
		m.stateMu.RLock()
		cfg := m.entries[name].config
		m.stateMu.RUnlock()

		if cfg.GetEffectiveSource() != source {
			continue
		}

		cert, err := m.load(ctx, &cfg)
		if err != nil {
			m.metrics.RecordCertificateReload(false)
			m.stateMu.Lock()
			m.entries[name].err = err
			m.stateMu.Unlock()

			m.logger.Error("failed to reload certificate",
				observability.String("name", name),
				observability.Error(err),
			)
			m.sendEvent(CertificateEvent{
				Type:    CertificateEventError,
				Name:    name,
				Error:   err,
				Message: "failed to reload certificate",
			})
			continue
		}

		m.stateMu.Lock()
		entry := m.entries[name]
		changed := entry.cert == nil || Fingerprint(entry.cert) != Fingerprint(cert)
		entry.cert = cert
		entry.err = nil
		if changed {
			entry.warn = m.newWarningLimiter()
		}
		m.stateMu.Unlock()

		m.metrics.RecordCertificateReload(true)
		m.sendEvent(CertificateEvent{
			Type:        CertificateEventReloaded,
			Name:        name,
			Certificate: cert,
			Message:     "certificate reloaded",
		})

		m.logger.Info("certificate reloaded",
			observability.String("name", name),
			observability.String("serial", SerialNumber(cert)),
			observability.Bool("changed", changed),
		)
	}
}

// load reads the certificate described by cfg.
func (m *ExpiryMonitor) load(ctx context.Context, cfg *CertificateConfig) (*x509.Certificate, error) {
	if cfg.GetEffectiveSource() != CertificateSourceVault {
		return loadCertificate(cfg)
	}

	cert, err := m.fetcher.FetchCertificate(ctx, cfg.Vault.Mount, cfg.Vault.Serial)
	if err != nil {
		return nil, NewCertificateErrorWithCause(cfg.Vault.Mount+"/"+cfg.Vault.Serial,
			"failed to fetch certificate from vault", err)
	}
	return cert, nil
}

// Check re-evaluates every certificate against the monitor's clock.
func (m *ExpiryMonitor) Check() error {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return ErrMonitorClosed
	}

	m.check()
	return nil
}

func (m *ExpiryMonitor) check() {
	now := m.clock.Now()

	for _, name := range m.order {
		m.stateMu.Lock()
		entry := m.entries[name]
		cert := entry.cert
		days := DaysUntilExpiration(cert, m.clock)
		state := CertificateExpiryState(cert, m.clock, m.config.WarningDays)
		entry.days = days
		entry.state = state
		entry.lastChecked = now
		warn := entry.warn
		m.stateMu.Unlock()

		m.metrics.UpdateCertificateExpiry(name, cert, m.clock)

		switch state {
		case ExpiryStateExpiring:
			warn.Do(func() {
				m.logger.Warn("certificate expiring",
					certificateFields(name, cert, days)...,
				)
			})
			m.sendEvent(CertificateEvent{
				Type:                CertificateEventExpiring,
				Name:                name,
				Certificate:         cert,
				DaysUntilExpiration: days,
				Message:             "certificate expiring",
			})

		case ExpiryStateExpired:
			warn.Do(func() {
				m.logger.Error("certificate expired",
					certificateFields(name, cert, days)...,
				)
			})
			m.sendEvent(CertificateEvent{
				Type:                CertificateEventExpired,
				Name:                name,
				Certificate:         cert,
				DaysUntilExpiration: days,
				Message:             "certificate expired",
			})
		}
	}
}

func certificateFields(name string, cert *x509.Certificate, days int32) []observability.Field {
	return []observability.Field{
		observability.String("name", name),
		observability.String("subject", SubjectDN(cert)),
		observability.String("serial", SerialNumber(cert)),
		observability.Int32("days_until_expiration", days),
		observability.Time("not_after", ExpirationTime(cert)),
	}
}

// Certificate returns the current certificate loaded under name.
func (m *ExpiryMonitor) Certificate(name string) (*x509.Certificate, error) {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	entry, ok := m.entries[name]
	if !ok || entry.cert == nil {
		return nil, ErrCertificateNotFound
	}
	return entry.cert, nil
}

// Snapshot returns the status of every monitored certificate, sorted by name.
func (m *ExpiryMonitor) Snapshot() []CertificateStatus {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()

	statuses := make([]CertificateStatus, 0, len(m.entries))
	for name, entry := range m.entries {
		info := ExtractCertificateInfo(entry.cert, m.clock)
		if info != nil && !entry.lastChecked.IsZero() {
			info.DaysUntilExpiration = entry.days
		}
		statuses = append(statuses, CertificateStatus{
			Name:        name,
			Info:        info,
			State:       entry.state,
			LastChecked: entry.lastChecked,
			Err:         entry.err,
		})
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})

	return statuses
}

// Events returns the channel that receives certificate events. It is
// closed by Close. Events are dropped when the channel is full.
func (m *ExpiryMonitor) Events() <-chan CertificateEvent {
	return m.eventCh
}

// Close stops the monitor and releases resources.
func (m *ExpiryMonitor) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	started := m.started
	m.mu.Unlock()

	close(m.stopCh)

	if started {
		<-m.stoppedCh
	}

	var err error
	if m.watcher != nil {
		err = WrapError(m.watcher.Close(), "failed to close file watcher")
	}

	close(m.eventCh)

	for _, name := range m.order {
		m.metrics.RemoveCertificate(name)
	}

	return err
}

// sendEvent delivers an event without blocking.
func (m *ExpiryMonitor) sendEvent(event CertificateEvent) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return
	}

	select {
	case m.eventCh <- event:
	default:
		m.logger.Warn("certificate event channel full, dropping event",
			observability.String("type", event.Type.String()),
			observability.String("name", event.Name),
		)
	}
}
