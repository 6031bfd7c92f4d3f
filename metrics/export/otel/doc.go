// Package otel provides OpenTelemetry metric exporter bindings for
// goAccount counters.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for
// each goAccount metric. A single callback reads
// [goAccount.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider; callers supply the Meter.
//   - Mutate engine state.
package otel
