// Package internal holds private helpers shared by the engine: opaque token
// generation and backup code handling.
//
// # Sub-packages
//
//   - audit: asynchronous activity dispatch
//   - counter: expiring integer counters (Redis and in-memory)
//   - rate: fixed-window route-class limits
//   - reputation: per-IP abuse tracking
//   - store: credential store implementations (memory, postgres)
//   - config, logging: server binary configuration and zap setup
//   - httpapi: HTTP handlers for the server binary
//
// # What this package must NOT do
//
//   - Export types that appear in the public docgate API.
package internal
