// Package httpapi serves the account lifecycle over HTTP/JSON.
//
// Routes live under /api/auth: signup, login, logout, verify-email,
// forgot-password, reset-password/{token} and check-auth, plus GET / for
// account enumeration outside production. Every response body is
// {success, message, ...payload}. Sessions travel in an HttpOnly cookie.
//
// # What this package must NOT do
//
//   - Put a password hash, verification code or reset token in a response.
//   - Return internal error detail to clients.
package httpapi
