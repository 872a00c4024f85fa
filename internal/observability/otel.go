package observability

import (
	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel"
)

// LogrLogger adapts a Logger to logr for libraries that log through it.
func LogrLogger(l Logger) logr.Logger {
	return zapr.NewLogger(Zap(l))
}

// SetOtelLogger routes OpenTelemetry's internal diagnostics to l and installs
// an error handler that reports export failures as warnings.
func SetOtelLogger(l Logger) {
	otel.SetLogger(LogrLogger(l).WithName("otel"))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		l.Warn("opentelemetry error", Error(err))
	}))
}
