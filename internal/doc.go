// Package internal holds helpers private to authflow, chiefly the random
// one-time values handed out by the signup and password reset flows.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators for every Engine operation
//   - logging: slog setup with trace correlation
//   - rate: Redis sliding-window rate limiting
//   - security: posture report and weak-setting warnings
//
// # What this package must NOT do
//
//   - Export types that appear in the public authflow API.
//   - Be imported by any package outside the authflow module.
package internal
