// Package prometheus exposes authkit engine metrics as a client_golang
// collector.
//
// [Collector] reads the engine snapshot on every scrape. Counter names are
// authkit_*_total and the single histogram is
// authkit_authenticate_latency_seconds. [Handler] serves a dedicated
// registry holding only this collector.
//
// # What this package must NOT do
//
//   - Register into the global default registry.
//   - Mutate engine state.
package prometheus
