// Package tracing builds OpenTelemetry tracers from configuration.
//
// Tracer implementations are provided by factories registered by name in a
// Registry. The configuration names a factory and carries its settings either
// as a plain "config" block or as a "typed_config" block tagged with "@type".
// The built-in "tlsutil.otlp" factory exports spans over OTLP/gRPC to a
// collector cluster resolved through a ClusterManager.
package tracing
