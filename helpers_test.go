package authflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authflow/password"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret-test-secret-test-secret"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory UserStore with the same uniqueness and
// consume-once semantics the real backends provide.
type memStore struct {
	mu     sync.Mutex
	users  map[string]*User
	nextID int

	createErr error
	lookupErr error
	pingErr   error
	// duplicateCodes forces CreateUser to report a code collision this many times.
	duplicateCodes int
}

func newMemStore() *memStore {
	return &memStore{users: map[string]*User{}}
}

func (s *memStore) CreateUser(_ context.Context, user *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createErr != nil {
		return s.createErr
	}
	if s.duplicateCodes > 0 {
		s.duplicateCodes--
		return fmt.Errorf("%w: %s", ErrDuplicateCode, user.VerificationToken)
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, user.Email)
		}
		if user.VerificationToken != "" && u.VerificationToken == user.VerificationToken {
			return fmt.Errorf("%w: %s", ErrDuplicateCode, user.VerificationToken)
		}
	}

	s.nextID++
	user.ID = fmt.Sprintf("user-%d", s.nextID)
	cp := *user
	s.users[cp.ID] = &cp
	return nil
}

func (s *memStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, email)
}

func (s *memStore) GetUserByID(_ context.Context, id string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookupErr != nil {
		return nil, s.lookupErr
	}
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) ListUsers(context.Context) ([]*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	u.LastLogin = at
	u.UpdatedAt = at
	return nil
}

func (s *memStore) SetResetToken(_ context.Context, id, token string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	u.ResetPasswordToken = token
	u.ResetPasswordExpiresAt = expiresAt
	return nil
}

func (s *memStore) ConsumeVerificationToken(_ context.Context, code string, now time.Time) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if code != "" && u.VerificationToken == code && u.VerificationTokenExpiresAt.After(now) {
			u.IsVerified = true
			u.VerificationToken = ""
			u.VerificationTokenExpiresAt = time.Time{}
			u.UpdatedAt = now
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *memStore) ConsumeResetToken(_ context.Context, token, newPasswordHash string, now time.Time) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if token != "" && u.ResetPasswordToken == token && u.ResetPasswordExpiresAt.After(now) {
			u.PasswordHash = newPasswordHash
			u.ResetPasswordToken = ""
			u.ResetPasswordExpiresAt = time.Time{}
			u.UpdatedAt = now
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *memStore) DeleteUnverifiedExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, u := range s.users {
		if !u.IsVerified && u.VerificationTokenExpiresAt.Before(now) {
			delete(s.users, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *memStore) Ping(context.Context) error {
	return s.pingErr
}

func (s *memStore) user(t *testing.T, email string) *User {
	t.Helper()
	u, err := s.GetUserByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("lookup %s: %v", email, err)
	}
	return u
}

func (s *memStore) remove(id string) {
	s.mu.Lock()
	delete(s.users, id)
	s.mu.Unlock()
}

type sentMail struct {
	Kind string
	To   string
	Arg  string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *recordingNotifier) record(kind, to, arg string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMail{Kind: kind, To: to, Arg: arg})
	return nil
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, to, code string) error {
	return n.record("verification", to, code)
}

func (n *recordingNotifier) SendWelcomeEmail(_ context.Context, to, name string) error {
	return n.record("welcome", to, name)
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, to, resetURL string) error {
	return n.record("reset", to, resetURL)
}

func (n *recordingNotifier) SendResetSuccessEmail(_ context.Context, to string) error {
	return n.record("reset_success", to, "")
}

func (n *recordingNotifier) byKind(kind string) []sentMail {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMail
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func testConfig() Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = []byte(testSecret)
	cfg.RateLimit.Enabled = false
	return cfg
}

func newTestHasher(t *testing.T) PasswordHasher {
	t.Helper()
	h, err := password.NewBcrypt(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("new hasher: %v", err)
	}
	return h
}

type testEnv struct {
	engine   *Engine
	store    *memStore
	notifier *recordingNotifier
	clock    *testClock
	sink     *ChannelSink
	redis    *miniredis.Miniredis
}

type envOption func(*Config)

func withRateLimit() envOption {
	return func(c *Config) { c.RateLimit.Enabled = true }
}

func withAudit() envOption {
	return func(c *Config) { c.Audit.Enabled = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	env := &testEnv{
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		clock:    newTestClock(),
		sink:     NewChannelSink(64),
	}

	b := New().
		WithConfig(cfg).
		WithStore(env.store).
		WithNotifier(env.notifier).
		WithHasher(newTestHasher(t)).
		WithAuditSink(env.sink).
		WithClock(env.clock.Now)

	if cfg.RateLimit.Enabled {
		env.redis = miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: env.redis.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		b = b.WithRedis(rdb)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine
	return env
}

// signupVerified registers an account and consumes its verification code.
func (env *testEnv) signupVerified(t *testing.T, email, pw string) *User {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, SignupRequest{Email: email, Password: pw, Name: "Test"}); err != nil {
		t.Fatalf("signup: %v", err)
	}
	u := env.store.user(t, email)
	if _, err := env.engine.VerifyEmail(ctx, u.VerificationToken); err != nil {
		t.Fatalf("verify: %v", err)
	}
	return env.store.user(t, email)
}
