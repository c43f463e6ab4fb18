package authflow

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/authflow/internal/audit"
	"github.com/MrEthical07/authflow/internal/rate"
	"github.com/MrEthical07/authflow/jwt"
	"github.com/MrEthical07/authflow/password"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config   Config
	store    UserStore
	notifier Notifier
	redis    redis.UniversalClient
	hasher   PasswordHasher
	logger   *slog.Logger

	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the user record store. Required.
func (b *Builder) WithStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithNotifier sets the email dispatcher. Required.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithRedis sets the client backing the rate limiter. Required while
// RateLimit.Enabled is true.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHasher overrides the hasher derived from Config.Password.
func (b *Builder) WithHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock replaces time.Now for token expiries and session issuance.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every flow.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}
	if b.notifier == nil {
		return nil, errors.New("notifier required")
	}
	if cfg.RateLimit.Enabled && b.redis == nil {
		return nil, errors.New("rate limiting requires redis client")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		notifier: b.notifier,
		logger:   logger,
		now:      now,
		metrics:  NewMetrics(cfg.Metrics),
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, b.auditSink),
	}

	if cfg.RateLimit.Enabled {
		engine.limiter = rate.New(b.redis, cfg.RateLimit.KeyPrefix, map[string]rate.Policy{
			string(RouteLogin):          {Limit: cfg.RateLimit.Login.Limit, Window: cfg.RateLimit.Login.Window},
			string(RouteSignup):         {Limit: cfg.RateLimit.Signup.Limit, Window: cfg.RateLimit.Signup.Window},
			string(RouteForgotPassword): {Limit: cfg.RateLimit.ForgotPassword.Limit, Window: cfg.RateLimit.ForgotPassword.Window},
		}, now)
	}

	hasher := b.hasher
	if hasher == nil {
		h, err := password.New(password.Config{
			Algorithm:  cfg.Password.Algorithm,
			BcryptCost: cfg.Password.BcryptCost,
			Argon2: password.Argon2Config{
				Memory:      cfg.Password.Argon2Memory,
				Time:        cfg.Password.Argon2Time,
				Parallelism: cfg.Password.Argon2Parallelism,
				SaltLength:  cfg.Password.Argon2SaltLength,
				KeyLength:   cfg.Password.Argon2KeyLength,
			},
		})
		if err != nil {
			engine.audit.Close()
			return nil, err
		}
		hasher = h
	}
	engine.hasher = hasher

	// Verified against on unknown-email logins to keep timing uniform.
	dummy, err := hasher.Hash("authflow-timing-equalizer")
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.dummyHash = dummy

	jm, err := jwt.NewManager(jwt.Config{
		Secret: cloneBytes(cfg.JWT.Secret),
		TTL:    cfg.JWT.TTL,
		Issuer: cfg.JWT.Issuer,
		Leeway: cfg.JWT.Leeway,
		Now:    now,
	})
	if err != nil {
		engine.audit.Close()
		return nil, err
	}
	engine.jwtManager = jm

	engine.initFlowService()
	b.built = true

	return engine, nil
}
