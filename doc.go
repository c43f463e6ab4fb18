// Package authflow implements an email and password account lifecycle:
// signup with an emailed verification code, login, logout, session check,
// and password reset by emailed link. Sessions are stateless HS256 tokens
// carried in a cookie named "token".
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authflow is the public surface. It exposes [Engine], [Builder], [Config],
// the [UserStore] and [Notifier] contracts and the error taxonomy. Flow
// orchestration, rate limiting and audit dispatch live under internal/.
// Storage backends (store), mail transports (mailer), HTTP handlers
// (httpapi, middleware) and the browser-side state mirror (client) are
// separate packages built on this one.
//
// # Errors
//
// Business rejections are *[Error] values carrying a [Kind] that maps to
// an HTTP status. Every other error is internal and should be rendered
// with [PublicMessage], which never exposes its detail.
//
// # What this package must NOT do
//
//   - Return a password hash, verification code or reset token in any
//     response value.
//   - Reveal at login whether an email is registered. Forgot-password does
//     reveal it and that is preserved.
//   - Import any sub-package that re-imports authflow (no import cycles).
package authflow
