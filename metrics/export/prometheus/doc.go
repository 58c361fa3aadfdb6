// Package prometheus renders engine metrics in the Prometheus text exposition
// format. Counter names are prefixed docgate_ and end in _total.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry. Callers mount the Handler.
//   - Mutate engine state.
package prometheus
