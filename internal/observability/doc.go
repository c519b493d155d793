// Package observability provides the gateway's observability infrastructure:
// structured logging and OpenTelemetry tracing.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - tracing: OpenTelemetry tracing integration
//
// Prometheus metrics live next to the code they measure: the rate limiter
// exports its own collectors (pkg/ratelimit), as do the HTTP handlers and
// the completion clients.
//
// Example usage:
//
//	import "rigsy-gateway/internal/observability/logging"
//
//	func main() {
//	    logger := logging.NewLogger("info")
//	    logger.Info("gateway started")
//	}
package observability
