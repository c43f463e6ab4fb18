// Package prometheus exposes engine counters and latency histograms as a
// prometheus.Collector.
//
// Counter names are authflow_*_total and histograms are
// authflow_*_latency_seconds. [Handler] mounts the collector on its own
// registry.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
