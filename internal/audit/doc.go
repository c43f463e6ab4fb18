// Package audit implements async dispatch of account lifecycle events
// (signup, verification, login, logout, password reset, sweep).
//
// # Components
//
//   - [Sink]: event consumers (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: timestamp, type, user, email, client IP, outcome and metadata.
//
// This package owns buffering and sink delivery. It does NOT decide which
// events to emit; the Engine does.
//
// # What this package must NOT do
//
//   - Record passwords, verification codes or reset tokens.
//   - Import authflow or any sibling internal package.
package audit
