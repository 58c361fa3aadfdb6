// Package otel publishes docgate engine metrics through OpenTelemetry.
//
// [New] registers one Int64ObservableCounter per engine counter and, for each
// latency histogram, a cumulative bucket gauge labelled with "le" plus a
// sample counter. A single callback reads [docgate.Engine.MetricsSnapshot]
// on every collection.
//
// [LogExporter] is an sdk metric exporter that writes collected values to a
// zap logger, for deployments without a collector.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
