package tracing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"

	"github.com/vyrodovalexey/tlsutil/internal/observability"
)

// OTLP factory identity.
const (
	OTLPFactoryName = "tlsutil.otlp"
	OTLPConfigType  = "type.googleapis.com/tlsutil.config.trace.v1.OTLPConfig"
)

// OTLP exporter defaults.
const (
	DefaultServiceName = "tlsutil"

	// DefaultOTLPTimeout is the default timeout for OTLP exporter operations.
	DefaultOTLPTimeout = 10 * time.Second

	// DefaultOTLPReconnectionPeriod is the default reconnection period for the gRPC connection.
	DefaultOTLPReconnectionPeriod = 10 * time.Second

	DefaultOTLPRetryInitialInterval = 1 * time.Second
	DefaultOTLPRetryMaxInterval     = 30 * time.Second
	DefaultOTLPRetryMaxElapsedTime  = 1 * time.Minute
)

// OTLPConfig configures the OTLP/gRPC tracer.
type OTLPConfig struct {
	// CollectorCluster names the cluster spans are exported to.
	CollectorCluster string `yaml:"collector_cluster"`

	// CollectorEndpoint is the collector's trace path. gRPC routes by service
	// name, so it is only validated and reported.
	CollectorEndpoint string `yaml:"collector_endpoint,omitempty"`

	ServiceName string            `yaml:"service_name,omitempty"`
	SampleRate  *float64          `yaml:"sample_rate,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Timeout     time.Duration     `yaml:"timeout,omitempty"`
}

// Validate checks the OTLP configuration.
func (c *OTLPConfig) Validate() error {
	if c.CollectorCluster == "" {
		return fmt.Errorf("collector_cluster is required")
	}
	if c.CollectorEndpoint != "" && !strings.HasPrefix(c.CollectorEndpoint, "/") {
		return fmt.Errorf("collector_endpoint must start with '/': %q", c.CollectorEndpoint)
	}
	if c.SampleRate != nil && (*c.SampleRate < 0 || *c.SampleRate > 1) {
		return fmt.Errorf("sample_rate must be between 0 and 1, got %v", *c.SampleRate)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}
	return nil
}

// ExporterFunc creates the span exporter from the assembled gRPC options.
type ExporterFunc func(ctx context.Context, opts []otlptracegrpc.Option) (sdktrace.SpanExporter, error)

// OTLPFactory creates tracers exporting over OTLP/gRPC.
type OTLPFactory struct {
	logger      observability.Logger
	newExporter ExporterFunc
}

var _ Factory = (*OTLPFactory)(nil)

// OTLPFactoryOption configures an OTLPFactory.
type OTLPFactoryOption func(*OTLPFactory)

// WithFactoryLogger sets the logger.
func WithFactoryLogger(logger observability.Logger) OTLPFactoryOption {
	return func(f *OTLPFactory) {
		f.logger = logger
	}
}

// WithExporterFunc replaces the gRPC exporter constructor.
func WithExporterFunc(fn ExporterFunc) OTLPFactoryOption {
	return func(f *OTLPFactory) {
		f.newExporter = fn
	}
}

// NewOTLPFactory creates the OTLP tracer factory.
func NewOTLPFactory(opts ...OTLPFactoryOption) *OTLPFactory {
	f := &OTLPFactory{
		logger:      observability.NopLogger(),
		newExporter: newGRPCExporter,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newGRPCExporter(ctx context.Context, opts []otlptracegrpc.Option) (sdktrace.SpanExporter, error) {
	return otlptrace.New(ctx, otlptracegrpc.NewClient(opts...))
}

// Name implements Factory.
func (f *OTLPFactory) Name() string { return OTLPFactoryName }

// ConfigType implements Factory.
func (f *OTLPFactory) ConfigType() string { return OTLPConfigType }

// NewConfig implements Factory.
func (f *OTLPFactory) NewConfig() any { return &OTLPConfig{} }

// CreateTracer implements Factory.
func (f *OTLPFactory) CreateTracer(ctx context.Context, cfg any, clusters ClusterManager) (*Tracer, error) {
	otlpCfg, ok := cfg.(*OTLPConfig)
	if !ok {
		return nil, fmt.Errorf("%w: %s expects *OTLPConfig, got %T", ErrTypedConfigMismatch, OTLPFactoryName, cfg)
	}
	if err := otlpCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", OTLPFactoryName, err)
	}

	if clusters == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCluster, otlpCfg.CollectorCluster)
	}
	cluster, ok := clusters.Get(otlpCfg.CollectorCluster)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCluster, otlpCfg.CollectorCluster)
	}

	opts, err := buildOTLPExporterOptions(otlpCfg, cluster)
	if err != nil {
		return nil, err
	}

	exporter, err := f.newExporter(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create exporter: %w", err)
	}

	serviceName := otlpCfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultServiceName
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
		resource.WithTelemetrySDK(),
	)
	if err != nil {
		_ = exporter.Shutdown(ctx)
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	sampleRate := 1.0
	if otlpCfg.SampleRate != nil {
		sampleRate = *otlpCfg.SampleRate
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(createSampler(sampleRate)),
		sdktrace.WithBatcher(exporter),
	)

	f.logger.Info("tracer created",
		observability.String("factory", OTLPFactoryName),
		observability.String("service", serviceName),
		observability.String("cluster", cluster.Name),
		observability.String("address", cluster.Address),
		observability.String("endpoint", otlpCfg.CollectorEndpoint),
		observability.Bool("tls", cluster.TLS != nil),
		observability.Float64("sampleRate", sampleRate),
	)

	return newTracer(provider), nil
}

// createSampler creates a sampler based on the sampling rate.
func createSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

// buildOTLPExporterOptions builds OTLP gRPC exporter options for a cluster.
func buildOTLPExporterOptions(cfg *OTLPConfig, cluster *Cluster) ([]otlptracegrpc.Option, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultOTLPTimeout
	}

	opts := make([]otlptracegrpc.Option, 0, 6)
	opts = append(opts,
		otlptracegrpc.WithEndpoint(cluster.Address),
		otlptracegrpc.WithTimeout(timeout),
		otlptracegrpc.WithReconnectionPeriod(DefaultOTLPReconnectionPeriod),
		otlptracegrpc.WithRetry(otlptracegrpc.RetryConfig{
			Enabled:         true,
			InitialInterval: DefaultOTLPRetryInitialInterval,
			MaxInterval:     DefaultOTLPRetryMaxInterval,
			MaxElapsedTime:  DefaultOTLPRetryMaxElapsedTime,
		}),
	)

	creds, err := cluster.TransportCredentials()
	if err != nil {
		return nil, err
	}
	if creds != nil {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(creds))
	} else {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return opts, nil
}
