// Package rate implements the Redis-backed sliding-window limiter used for
// the abuse-prone auth routes.
//
// # Window semantics
//
// Each (route, client) pair owns one sorted set keyed <prefix>:<route>:<client>
// whose members are admitted requests scored by their arrival time in
// milliseconds. A Lua script trims, counts and inserts atomically, so
// concurrent requests from the same client cannot overshoot the limit.
// Rejected requests are not recorded.
//
// # What this package must NOT do
//
//   - Decide which routes are limited (the Engine owns the policy table).
//   - Be imported outside the authflow module.
package rate
