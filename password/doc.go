// Package password implements one-way credential hashing.
//
// # Algorithms
//
// [Bcrypt] is the default at cost 12. [Argon2] produces PHC strings:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [New] returns an [Auto] hasher that writes with the configured algorithm
// and verifies digests of either format, so switching algorithms does not
// lock out existing accounts.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Enforce password policy (length rules live in the Engine).
//   - Log plaintext passwords or hash parameters at runtime.
package password
