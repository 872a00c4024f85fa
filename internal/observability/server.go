package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServerConfig holds configuration for the metrics server.
type MetricsServerConfig struct {
	// Address is the host:port to listen on.
	Address string

	// Path is the path metrics are served on.
	Path string

	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration

	// EnableRuntimeMetrics registers the Go runtime and process collectors.
	EnableRuntimeMetrics bool
}

// DefaultMetricsServerConfig returns a MetricsServerConfig with default values.
func DefaultMetricsServerConfig() MetricsServerConfig {
	return MetricsServerConfig{
		Address:              ":9090",
		Path:                 "/metrics",
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         10 * time.Second,
		EnableRuntimeMetrics: true,
	}
}

// MetricsServer serves a Prometheus registry over HTTP.
type MetricsServer struct {
	config   MetricsServerConfig
	registry *prometheus.Registry
	logger   Logger
	mux      *http.ServeMux
	server   *http.Server
	listener net.Listener
	stopOnce sync.Once
}

// NewMetricsServer creates a metrics server for registry. Zero config fields
// take their defaults.
func NewMetricsServer(config MetricsServerConfig, registry *prometheus.Registry, logger Logger) *MetricsServer {
	defaults := DefaultMetricsServerConfig()
	if config.Address == "" {
		config.Address = defaults.Address
	}
	if config.Path == "" {
		config.Path = defaults.Path
	}
	if config.ReadHeaderTimeout == 0 {
		config.ReadHeaderTimeout = defaults.ReadHeaderTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if logger == nil {
		logger = NopLogger()
	}

	if config.EnableRuntimeMetrics {
		registry.MustRegister(collectors.NewGoCollector())
		registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	s := &MetricsServer{
		config:   config,
		registry: registry,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.mux.Handle(config.Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorLog:            &promErrorLogger{logger: logger},
		ErrorHandling:       promhttp.ContinueOnError,
		Registry:            registry,
		MaxRequestsInFlight: 10,
		Timeout:             config.WriteTimeout,
		EnableOpenMetrics:   true,
	}))
	s.server = &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: config.ReadHeaderTimeout,
		WriteTimeout:      config.WriteTimeout,
	}
	return s
}

// Handle registers an additional handler, such as health probes, next to
// the metrics path. It must be called before Serve.
func (s *MetricsServer) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// Handler returns the server's mux.
func (s *MetricsServer) Handler() http.Handler {
	return s.mux
}

// Listen binds the listening socket. It is separate from Serve so callers
// learn about bind errors synchronously.
func (s *MetricsServer) Listen() error {
	ln, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, or the configured one before Listen.
func (s *MetricsServer) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.config.Address
}

// Serve serves until Stop is called. Listen is called first if needed.
func (s *MetricsServer) Serve() error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	s.logger.Info("starting metrics server",
		String("address", s.Addr()),
		String("path", s.config.Path),
	)

	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully shuts the server down.
func (s *MetricsServer) Stop(ctx context.Context) error {
	var stopErr error
	s.stopOnce.Do(func() {
		s.logger.Info("stopping metrics server")
		stopErr = s.server.Shutdown(ctx)
	})
	return stopErr
}

// promErrorLogger adapts Logger to the promhttp.Logger interface.
type promErrorLogger struct {
	logger Logger
}

// Println implements promhttp.Logger.
func (l *promErrorLogger) Println(v ...interface{}) {
	l.logger.Error(fmt.Sprint(v...))
}
