// Package logging configures the process-wide slog logger. Records carry
// service and version attributes plus trace_id and span_id when the context
// holds an OpenTelemetry span.
package logging
