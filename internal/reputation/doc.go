// Package reputation tracks per-IP abuse signals and temporary IP blocks.
//
// Counters (all in the injected counter.Store, keyed by client IP):
//
//	blocked:<ip>     block flag, fixed lifetime
//	failed:<ip>      failed logins, TTL refreshed on every failure
//	suspicious:<ip>  heuristic score, TTL refreshed on every increment
//	requests:<ip>    burst counter, fixed one-minute window
//
// Every check returns a [Decision]. Internal errors never reject: they yield
// [AdmitWithError] so the caller can log and continue.
//
// # What this package must NOT do
//
//   - Know about accounts. Account lockout is persisted with the user record.
//   - Write HTTP responses.
package reputation
