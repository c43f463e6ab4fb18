// Package store provides [authflow.UserStore] backends: [Redis], [Mongo]
// and [Postgres].
//
// Every backend enforces email uniqueness and verification code uniqueness
// at write time, treats a token whose expiry is not after "now" as absent,
// and consumes tokens in a single atomic write. Lookups that match nothing
// return an error wrapping [authflow.ErrRecordNotFound].
//
// Timestamps round-trip at millisecond precision in UTC.
//
// The storetest sub-package holds the behavioral suite all three backends
// run against.
package store
