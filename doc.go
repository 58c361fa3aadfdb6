// Package docgate is the admission engine of the document-analysis service:
// token authentication backed by revocable server-side sessions, per-IP abuse
// tracking, route-class rate limits, account lockout, two-factor login and a
// daily-replenished credit quota.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// docgate is the public surface: [Engine], [Builder], [Config], the persisted
// value types ([User], [CreditRequest], [Activity], [Document]) and the store
// interfaces they are read from. Redis-backed counters, rate windows, IP
// reputation and activity dispatch live under internal/. HTTP adapters live in
// package middleware.
//
// # Failure policy
//
// Identity checks fail closed: a store error while authenticating is a 401.
// Abuse checks fail open: a counter store error admits the request and is
// logged.
//
// # What this package must NOT do
//
//   - Write HTTP responses (middleware and internal/httpapi do that).
//   - Import a concrete store implementation.
package docgate
