// Package security describes the security posture of a configured engine
// and flags settings that weaken it.
//
// # What this package must NOT do
//
//   - Read secrets. A Report carries lengths and flags, never key material.
package security
