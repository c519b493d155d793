// Package tracing provides OpenTelemetry tracing integration for the
// gateway's HTTP surface: a server span per request with W3C trace context
// propagation, and an X-Trace-Id response header for client correlation.
package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// tracer is the global tracer instance for the gateway.
var tracer = otel.Tracer("rigsy-gateway")

// GetTracer returns the global tracer for creating spans.
//
// Example usage:
//
//	ctx, span := tracing.GetTracer().Start(ctx, "notion-signup")
//	defer span.End()
func GetTracer() trace.Tracer {
	return tracer
}
