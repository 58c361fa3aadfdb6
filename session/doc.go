// Package session provides the Redis-backed server-side session records that
// make signed tokens revocable.
//
// # Layout
//
// Each session is a Redis hash under "<prefix>:s:<sha256(token)>" whose TTL
// matches the token expiry. A per-user set "<prefix>:u:<userID>" indexes the
// token hashes so every session of a user can be revoked at once. Stale index
// members are pruned lazily.
//
// Mutations after creation (activity touch, invalidation) run as Lua scripts
// that only write to an existing hash, so they can never resurrect an expired
// record without a TTL.
//
// # What this package must NOT do
//
//   - Import docgate or jwt (no upward imports).
//   - Store the raw token. Only its SHA-256 digest is persisted.
//   - Decide whether a user may be admitted beyond the active/expiry check.
package session
