// Package jwt issues and verifies the stateless session token carried in the
// session cookie. Tokens are HS256-signed with a shared secret and carry only
// the user id.
//
// # What this package must NOT do
//
//   - Distinguish expired, malformed and tampered tokens to callers.
//   - Persist or revoke tokens. Logout is cookie clearing only.
//   - Import any other authflow package.
package jwt
