// Package otel publishes engine counters and latency buckets as
// OpenTelemetry observable instruments.
//
// [New] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per histogram bucket, all fed by a single callback
// that reads [authflow.Engine.MetricsSnapshot].
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
