// Package audit relays activity events to a sink off the request path.
//
// # Components
//
//   - [Sink]: event consumer (activity store, channel, zap logger).
//   - [Dispatcher]: buffered asynchronous relay with drop-if-full or
//     block-if-full delivery.
//   - [Event]: one activity record with timestamp, action, user, client
//     address and details.
//
// # What this package must NOT do
//
//   - Decide which events are emitted. The engine does that.
//   - Import docgate or any sibling internal package.
//   - Carry secrets. Callers never put tokens, codes or passwords in Details.
package audit
