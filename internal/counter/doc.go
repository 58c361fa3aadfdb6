// Package counter provides the ephemeral integer counter store shared by the
// IP reputation tracker and the route rate limiter.
//
// # Implementations
//
//   - [Redis]: go-redis backed. Each operation is one command or Lua script.
//   - [Memory]: process-local map with an injectable clock, used by tests and
//     single-instance development setups.
//
// # What this package must NOT do
//
//   - Interpret counter values (thresholds live in internal/rate and internal/reputation).
//   - Retry failed commands. Callers decide whether a failure admits or rejects.
package counter
