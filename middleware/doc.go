// Package middleware adapts the engine to net/http.
//
//   - [ClientIP] attaches the caller address used for rate limiting and audit.
//   - [RateLimit] enforces a per-route, per-client budget.
//   - [RequireSession] validates the session cookie and attaches the user id.
//
// Rejections are written as the {success, message} JSON envelope with the
// status of the error's [authflow.Kind].
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the engine).
//   - Read the user store.
package middleware
