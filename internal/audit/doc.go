// Package audit implements async event dispatching for account and membership changes.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured audit record carrying the changed field names.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; the Engine does that after a successful write.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import goAccess or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
