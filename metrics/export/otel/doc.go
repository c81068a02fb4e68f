// Package otel publishes authkit engine metrics through an OpenTelemetry
// meter.
//
// [NewExporter] registers one observable counter per engine counter and one
// observable gauge per cumulative histogram bucket. A single callback reads
// the engine snapshot on every collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
