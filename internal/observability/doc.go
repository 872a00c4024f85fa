// Package observability provides structured logging for tlsutil and bridges
// OpenTelemetry's internal diagnostics into the same log stream.
//
// # Logging
//
// The Logger interface wraps zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("certificate loaded",
//	    observability.String("subject", subject),
//	    observability.Int32("days_until_expiration", days),
//	)
//
// Components accept a Logger through functional options and default to
// NopLogger, so tests never need to configure logging.
//
// # OpenTelemetry
//
// SetOtelLogger routes the SDK's logr-based diagnostics and export errors
// into a Logger via zapr.
//
// # Metrics
//
// MetricsServer serves a Prometheus registry over HTTP. Extra handlers, such
// as health probes, are mounted with Handle before Serve.
package observability
