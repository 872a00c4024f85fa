package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/tlsutil/internal/observability"
)

// DefaultTracerName is the instrumentation name spans are recorded under.
const DefaultTracerName = "github.com/vyrodovalexey/tlsutil"

// Tracer wraps an OpenTelemetry tracer provider built by a Factory.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewNoopTracer returns a Tracer backed by the global provider. It owns no
// exporter, so Shutdown and ForceFlush are no-ops.
func NewNoopTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(DefaultTracerName)}
}

func newTracer(provider *sdktrace.TracerProvider) *Tracer {
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(DefaultTracerName),
	}
}

// Enabled reports whether the tracer exports spans.
func (t *Tracer) Enabled() bool {
	return t.provider != nil
}

// Provider returns the underlying provider, falling back to the global one.
func (t *Tracer) Provider() trace.TracerProvider {
	if t.provider == nil {
		return otel.GetTracerProvider()
	}
	return t.provider
}

// Install makes the tracer the global provider and sets W3C propagation.
func (t *Tracer) Install() {
	if t.provider != nil {
		otel.SetTracerProvider(t.provider)
	}
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// StartSpan starts a new span.
func (t *Tracer) StartSpan(
	ctx context.Context,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	ctx, span := t.tracer.Start(ctx, name, opts...)
	return withSpanIDs(ctx, span), span
}

// withSpanIDs stores the span's trace and span IDs so Logger.WithContext
// picks them up.
func withSpanIDs(ctx context.Context, span trace.Span) context.Context {
	sc := span.SpanContext()
	if sc.HasTraceID() {
		ctx = observability.ContextWithTraceID(ctx, sc.TraceID().String())
	}
	if sc.HasSpanID() {
		ctx = observability.ContextWithSpanID(ctx, sc.SpanID().String())
	}
	return ctx
}

// ForceFlush exports all ended spans that have not been exported yet.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.ForceFlush(ctx)
	}
	return nil
}

// Shutdown flushes and stops the exporter.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// NewTracerFromConfig resolves cfg.HTTP.Name in registry, translates its
// configuration and creates the tracer. A nil registry means DefaultRegistry.
// Without an http block the result is a no-op tracer.
func NewTracerFromConfig(ctx context.Context, cfg *Config, registry *Registry) (*Tracer, error) {
	if !cfg.Enabled() {
		return NewNoopTracer(), nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = defaultRegistry
	}

	factory, err := registry.Get(cfg.HTTP.Name)
	if err != nil {
		return nil, err
	}

	message, err := TranslateToFactoryConfig(cfg.HTTP, factory)
	if err != nil {
		return nil, err
	}

	clusters, err := NewStaticClusterManager(cfg.Clusters...)
	if err != nil {
		return nil, err
	}

	return factory.CreateTracer(ctx, message, clusters)
}
