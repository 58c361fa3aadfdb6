// Package rate implements the per-route-class fixed-window request limiter.
//
// # Window semantics
//
// Fixed-window counters: INCR + EXPIRE on the first hit only, so a window
// resets when its key expires and never slides. Keys are "rl:<class>:<ip>".
//
// # What this package must NOT do
//
//   - Block IPs (that is internal/reputation).
//   - Reject on counter store failures. Errors are returned so the caller can
//     admit and log.
package rate
