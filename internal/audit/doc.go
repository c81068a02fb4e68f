// Package audit relays security-relevant account events to a caller-chosen
// sink without blocking the request path.
//
// A [Dispatcher] owns a buffered channel and one worker goroutine. When the
// buffer is full it either drops the event and counts it, or blocks until the
// caller's context is done, depending on [Config].DropIfFull.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The engine does that.
//   - Carry tokens, passwords or hashes in metadata.
//   - Import authkit or any sibling internal package.
package audit
