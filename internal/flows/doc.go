// Package flows contains the orchestrators for every Engine operation:
// signup, login, email verification, forgot/reset password, check-auth and
// the unverified-account sweep.
//
// Each Run* function accepts a typed dependency struct of funcs, metric IDs,
// audit event names and host sentinel errors, so the package never needs the
// root types and every branch can be unit tested with plain closures.
//
// # Error contract
//
// Business rejections are returned as the host sentinel supplied in the
// Errors struct. Every other failure is wrapped with an oops code and the
// operation that failed; the engine logs those and reports a generic fault.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import authflow (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency funcs.
package flows
