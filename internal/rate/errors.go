package rate

import "errors"

var (
	// ErrUnknownRoute is returned for a route with no configured policy.
	ErrUnknownRoute = errors.New("no rate limit policy for route")
	// ErrRedisUnavailable wraps every Redis fault.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
