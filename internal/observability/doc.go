// Package observability provides structured logging, Prometheus metrics and
// OpenTelemetry tracing for the agent core.
//
// # Logging
//
// NewLogger returns a *slog.Logger whose handler redacts secrets (API keys,
// bearer tokens, passwords) and stamps correlation IDs carried in the context:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "text"})
//	ctx = observability.AddSessionID(ctx, session.ID)
//	logger.InfoContext(ctx, "tool executed", "tool", name) // includes session_id
//
// # Metrics
//
// NewMetrics registers collectors against the given prometheus.Registerer.
// Passing nil uses the default registry; tests pass prometheus.NewRegistry().
// A nil *Metrics is valid and records nothing.
//
// # Tracing
//
// NewTracer exports spans over OTLP/gRPC when an endpoint is configured and
// falls back to the global no-op tracer otherwise.
package observability
