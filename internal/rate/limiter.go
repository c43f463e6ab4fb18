package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Policy is one sliding-window budget.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of [Limiter.Allow].
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// slidingWindow trims entries older than the window, then admits the request
// only when the remaining count is under the limit. Rejected requests are not
// recorded. Scores and the window are milliseconds.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, 0}
end

local retry = window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// Limiter enforces per-route, per-client sliding windows in Redis.
type Limiter struct {
	redis    redis.UniversalClient
	prefix   string
	policies map[string]Policy
	now      func() time.Time
}

// New creates a [Limiter]. now may be nil.
func New(redisClient redis.UniversalClient, prefix string, policies map[string]Policy, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	copied := make(map[string]Policy, len(policies))
	for route, p := range policies {
		copied[route] = p
	}
	return &Limiter{
		redis:    redisClient,
		prefix:   prefix,
		policies: copied,
		now:      now,
	}
}

// Allow records one request from client against route and reports whether
// it fits the budget.
func (l *Limiter) Allow(ctx context.Context, route, client string) (Decision, error) {
	policy, ok := l.policies[route]
	if !ok {
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownRoute, route)
	}

	nowMs := l.now().UnixMilli()
	windowMs := policy.Window.Milliseconds()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindow.Run(ctx, l.redis,
		[]string{l.key(route, client)},
		nowMs, windowMs, policy.Limit, member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("%w: unexpected script reply %v", ErrRedisUnavailable, res)
	}

	retry := time.Duration(res[2]) * time.Millisecond
	if retry < 0 {
		retry = 0
	}
	return Decision{
		Allowed:    res[0] == 1,
		Limit:      policy.Limit,
		Remaining:  int(res[1]),
		RetryAfter: retry,
	}, nil
}

// Ping checks the Redis connection.
func (l *Limiter) Ping(ctx context.Context) error {
	if err := l.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) key(route, client string) string {
	if client == "" {
		client = "unknown"
	}
	return l.prefix + ":" + route + ":" + client
}
