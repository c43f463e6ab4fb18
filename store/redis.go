package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/MrEthical07/authflow"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every transport or script failure of [Redis].
var ErrRedisUnavailable = errors.New("user store redis unavailable")

const watchRetries = 3

// createUserLua inserts a user hash together with its unique indexes.
// KEYS[1] = user hash
// KEYS[2] = email index
// KEYS[3] = verification code index
// KEYS[4] = user id set
// KEYS[5] = unverified zset (score = code expiry ms)
// ARGV[1] = user id
// ARGV[2] = verification code ('' for none)
// ARGV[3] = verification expiry ms
// ARGV[4] = '1' when the user is verified
// ARGV[5..] = hash field/value pairs
//
// Returns:
//
//	1 on success
//	error string: "duplicate_email", "duplicate_code"
var createUserLua = redis.NewScript(`
if redis.call('EXISTS', KEYS[2]) == 1 then
  return {err='duplicate_email'}
end
if ARGV[2] ~= '' and redis.call('EXISTS', KEYS[3]) == 1 then
  return {err='duplicate_code'}
end

redis.call('HSET', KEYS[1], unpack(ARGV, 5))
redis.call('SET', KEYS[2], ARGV[1])
if ARGV[2] ~= '' then
  redis.call('SET', KEYS[3], ARGV[1])
end
redis.call('SADD', KEYS[4], ARGV[1])
if ARGV[4] ~= '1' then
  redis.call('ZADD', KEYS[5], ARGV[3], ARGV[1])
end
return 1
`)

// consumeVerificationLua marks the owner of a live code verified and
// removes the code.
// KEYS[1] = verification code index
// KEYS[2] = user hash
// KEYS[3] = unverified zset
// ARGV[1] = user id the index resolved to
// ARGV[2] = code
// ARGV[3] = now ms
//
// Returns the user hash as a flat field/value list, or {err='not_found'}.
var consumeVerificationLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return {err='not_found'}
end
local f = redis.call('HMGET', KEYS[2], 'verificationToken', 'verificationTokenExpiresAt')
if f[1] ~= ARGV[2] then
  return {err='not_found'}
end
local exp = tonumber(f[2])
if not exp or exp <= tonumber(ARGV[3]) then
  return {err='not_found'}
end

redis.call('HSET', KEYS[2], 'isVerified', '1', 'verificationToken', '', 'verificationTokenExpiresAt', '', 'updatedAt', ARGV[3])
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[3], ARGV[1])
return redis.call('HGETALL', KEYS[2])
`)

// consumeResetLua replaces the password of the owner of a live reset token
// and removes the token.
// KEYS[1] = reset token index
// KEYS[2] = user hash
// ARGV[1] = user id the index resolved to
// ARGV[2] = token
// ARGV[3] = now ms
// ARGV[4] = new password hash
//
// Returns the user hash as a flat field/value list, or {err='not_found'}.
var consumeResetLua = redis.NewScript(`
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return {err='not_found'}
end
local f = redis.call('HMGET', KEYS[2], 'resetPasswordToken', 'resetPasswordExpiresAt')
if f[1] ~= ARGV[2] then
  return {err='not_found'}
end
local exp = tonumber(f[2])
if not exp or exp <= tonumber(ARGV[3]) then
  return {err='not_found'}
end

redis.call('HSET', KEYS[2], 'password', ARGV[4], 'resetPasswordToken', '', 'resetPasswordExpiresAt', '', 'updatedAt', ARGV[3])
redis.call('DEL', KEYS[1])
return redis.call('HGETALL', KEYS[2])
`)

// deleteUnverifiedLua removes one unverified user whose code expired.
// KEYS[1] = user hash
// KEYS[2] = email index
// KEYS[3] = verification code index
// KEYS[4] = user id set
// KEYS[5] = unverified zset
// ARGV[1] = user id
// ARGV[2] = now ms
//
// Returns 1 when deleted, 0 when the user no longer qualifies.
var deleteUnverifiedLua = redis.NewScript(`
local f = redis.call('HMGET', KEYS[1], 'isVerified', 'verificationTokenExpiresAt')
if f[1] ~= '0' then
  redis.call('ZREM', KEYS[5], ARGV[1])
  return 0
end
local exp = tonumber(f[2]) or 0
if exp >= tonumber(ARGV[2]) then
  return 0
end

redis.call('DEL', KEYS[1])
if redis.call('GET', KEYS[2]) == ARGV[1] then
  redis.call('DEL', KEYS[2])
end
if redis.call('GET', KEYS[3]) == ARGV[1] then
  redis.call('DEL', KEYS[3])
end
redis.call('SREM', KEYS[4], ARGV[1])
redis.call('ZREM', KEYS[5], ARGV[1])
return 1
`)

// Redis is an [authflow.UserStore] backed by Redis hashes. Email,
// verification code and reset token uniqueness is kept in index keys that
// are only written by Lua scripts or WATCH transactions.
//
// Keys:
//
//	<prefix>:user:<id>       hash
//	<prefix>:email:<email>   -> id
//	<prefix>:vcode:<code>    -> id
//	<prefix>:reset:<token>   -> id
//	<prefix>:users           set of ids
//	<prefix>:unverified      zset of ids scored by code expiry (ms)
type Redis struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis store. An empty prefix defaults to "authflow".
func NewRedis(redisClient redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = "authflow"
	}
	return &Redis{
		redis:  redisClient,
		prefix: prefix,
	}
}

var _ authflow.UserStore = (*Redis)(nil)

func (s *Redis) userKey(id string) string     { return s.prefix + ":user:" + id }
func (s *Redis) emailKey(email string) string { return s.prefix + ":email:" + email }
func (s *Redis) codeKey(code string) string   { return s.prefix + ":vcode:" + code }
func (s *Redis) resetKey(token string) string { return s.prefix + ":reset:" + token }
func (s *Redis) usersKey() string             { return s.prefix + ":users" }
func (s *Redis) unverifiedKey() string        { return s.prefix + ":unverified" }

func unavailable(err error) error { return fmt.Errorf("%w: %v", ErrRedisUnavailable, err) }

// CreateUser assigns user.ID and inserts the record.
func (s *Redis) CreateUser(ctx context.Context, user *authflow.User) error {
	id := uuid.NewString()

	verified := "0"
	if user.IsVerified {
		verified = "1"
	}
	record := *user
	record.ID = id

	args := []interface{}{
		id,
		user.VerificationToken,
		encodeMillis(user.VerificationTokenExpiresAt),
		verified,
	}
	args = append(args, encodeUserHash(&record)...)

	err := createUserLua.Run(ctx, s.redis, []string{
		s.userKey(id),
		s.emailKey(user.Email),
		s.codeKey(user.VerificationToken),
		s.usersKey(),
		s.unverifiedKey(),
	}, args...).Err()
	if err != nil {
		switch err.Error() {
		case "duplicate_email":
			return fmt.Errorf("%w: %s", authflow.ErrDuplicateEmail, user.Email)
		case "duplicate_code":
			return authflow.ErrDuplicateCode
		default:
			return unavailable(err)
		}
	}

	user.ID = id
	return nil
}

// GetUserByEmail resolves the email index and loads the user.
func (s *Redis) GetUserByEmail(ctx context.Context, email string) (*authflow.User, error) {
	id, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(email)
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID loads one user hash.
func (s *Redis) GetUserByID(ctx context.Context, id string) (*authflow.User, error) {
	fields, err := s.redis.HGetAll(ctx, s.userKey(id)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, notFound(id)
	}
	return decodeUserHash(fields)
}

// ListUsers returns every user ordered by creation time.
func (s *Redis) ListUsers(ctx context.Context) ([]*authflow.User, error) {
	ids, err := s.redis.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, unavailable(err)
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.userKey(id))
	}
	if len(ids) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, unavailable(err)
		}
	}

	users := make([]*authflow.User, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			// swept between SMEMBERS and HGETALL
			continue
		}
		u, err := decodeUserHash(fields)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	sortUsers(users)
	return users, nil
}

// UpdateLastLogin stamps lastLogin and updatedAt.
func (s *Redis) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	key := s.userKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound(id)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "lastLogin", encodeMillis(at), "updatedAt", encodeMillis(at))
			return nil
		})
		return err
	}, key)
}

// SetResetToken replaces the user's reset token and its index entry.
func (s *Redis) SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error {
	key := s.userKey(id)
	return s.watch(ctx, func(tx *redis.Tx) error {
		vals, err := tx.HMGet(ctx, key, "id", "resetPasswordToken").Result()
		if err != nil {
			return err
		}
		if vals[0] == nil {
			return notFound(id)
		}
		old, _ := vals[1].(string)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if old != "" {
				pipe.Del(ctx, s.resetKey(old))
			}
			pipe.HSet(ctx, key, "resetPasswordToken", token, "resetPasswordExpiresAt", encodeMillis(expiresAt))
			pipe.Set(ctx, s.resetKey(token), id, resetIndexTTL(expiresAt))
			return nil
		})
		return err
	}, key)
}

// minResetIndexTTL keeps the index readable when expiresAt is already past
// on the wall clock; the consume script still rejects it by expiry.
const minResetIndexTTL = time.Minute

// resetIndexTTL bounds the reset index key to the token's lifetime.
func resetIndexTTL(expiresAt time.Time) time.Duration {
	return max(time.Until(expiresAt), minResetIndexTTL)
}

// ConsumeVerificationToken verifies the owner of a live code.
func (s *Redis) ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*authflow.User, error) {
	if code == "" {
		return nil, authflow.ErrRecordNotFound
	}
	id, err := s.redis.Get(ctx, s.codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, authflow.ErrRecordNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	result, err := consumeVerificationLua.Run(ctx, s.redis,
		[]string{s.codeKey(code), s.userKey(id), s.unverifiedKey()},
		id,
		code,
		encodeMillis(now),
	).Result()
	return s.consumeResult(result, err)
}

// ConsumeResetToken sets a new password for the owner of a live token.
func (s *Redis) ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (*authflow.User, error) {
	if token == "" {
		return nil, authflow.ErrRecordNotFound
	}
	id, err := s.redis.Get(ctx, s.resetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, authflow.ErrRecordNotFound
	}
	if err != nil {
		return nil, unavailable(err)
	}

	result, err := consumeResetLua.Run(ctx, s.redis,
		[]string{s.resetKey(token), s.userKey(id)},
		id,
		token,
		encodeMillis(now),
		newPasswordHash,
	).Result()
	return s.consumeResult(result, err)
}

func (s *Redis) consumeResult(result interface{}, err error) (*authflow.User, error) {
	if err != nil {
		if err.Error() == "not_found" {
			return nil, authflow.ErrRecordNotFound
		}
		return nil, unavailable(err)
	}
	flat, ok := result.([]interface{})
	if !ok || len(flat)%2 != 0 {
		return nil, fmt.Errorf("%w: unexpected lua result type", ErrRedisUnavailable)
	}
	fields := make(map[string]string, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		k, _ := flat[i].(string)
		v, _ := flat[i+1].(string)
		fields[k] = v
	}
	return decodeUserHash(fields)
}

// DeleteUnverifiedExpired removes unverified users whose code expired
// before now.
func (s *Redis) DeleteUnverifiedExpired(ctx context.Context, now time.Time) (int64, error) {
	nowMs := now.UnixMilli()
	ids, err := s.redis.ZRangeByScore(ctx, s.unverifiedKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(nowMs, 10),
	}).Result()
	if err != nil {
		return 0, unavailable(err)
	}

	var deleted int64
	for _, id := range ids {
		vals, err := s.redis.HMGet(ctx, s.userKey(id), "email", "verificationToken").Result()
		if err != nil {
			return deleted, unavailable(err)
		}
		email, _ := vals[0].(string)
		code, _ := vals[1].(string)

		n, err := deleteUnverifiedLua.Run(ctx, s.redis, []string{
			s.userKey(id),
			s.emailKey(email),
			s.codeKey(code),
			s.usersKey(),
			s.unverifiedKey(),
		}, id, nowMs).Int64()
		if err != nil {
			return deleted, unavailable(err)
		}
		deleted += n
	}
	return deleted, nil
}

// Ping checks the connection.
func (s *Redis) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func (s *Redis) watch(ctx context.Context, fn func(*redis.Tx) error, keys ...string) error {
	var err error
	for i := 0; i < watchRetries; i++ {
		err = s.redis.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err == nil || errors.Is(err, authflow.ErrRecordNotFound) {
		return err
	}
	return unavailable(err)
}

func encodeUserHash(u *authflow.User) []interface{} {
	verified := "0"
	if u.IsVerified {
		verified = "1"
	}
	return []interface{}{
		"id", u.ID,
		"email", u.Email,
		"name", u.Name,
		"password", u.PasswordHash,
		"isVerified", verified,
		"verificationToken", u.VerificationToken,
		"verificationTokenExpiresAt", encodeMillis(u.VerificationTokenExpiresAt),
		"resetPasswordToken", u.ResetPasswordToken,
		"resetPasswordExpiresAt", encodeMillis(u.ResetPasswordExpiresAt),
		"lastLogin", encodeMillis(u.LastLogin),
		"createdAt", encodeMillis(u.CreatedAt),
		"updatedAt", encodeMillis(u.UpdatedAt),
	}
}

func decodeUserHash(fields map[string]string) (*authflow.User, error) {
	u := &authflow.User{
		ID:                 fields["id"],
		Email:              fields["email"],
		Name:               fields["name"],
		PasswordHash:       fields["password"],
		IsVerified:         fields["isVerified"] == "1",
		VerificationToken:  fields["verificationToken"],
		ResetPasswordToken: fields["resetPasswordToken"],
	}
	for name, dst := range map[string]*time.Time{
		"verificationTokenExpiresAt": &u.VerificationTokenExpiresAt,
		"resetPasswordExpiresAt":     &u.ResetPasswordExpiresAt,
		"lastLogin":                  &u.LastLogin,
		"createdAt":                  &u.CreatedAt,
		"updatedAt":                  &u.UpdatedAt,
	} {
		t, err := decodeMillis(fields[name])
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt %s: %v", ErrRedisUnavailable, name, err)
		}
		*dst = t
	}
	return u, nil
}

// encodeMillis renders t as unix milliseconds, or "" for the zero time.
func encodeMillis(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func decodeMillis(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

func sortUsers(users []*authflow.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
}
