package authflow

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Environment selects development or production behavior.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds every tunable of the Engine. Obtain one from [DefaultConfig]
// and override fields before passing it to [Builder.WithConfig].
type Config struct {
	Environment       Environment
	ClientURL         string
	JWT               JWTConfig
	Cookie            CookieConfig
	Password          PasswordConfig
	EmailVerification EmailVerificationConfig
	PasswordReset     PasswordResetConfig
	RateLimit         RateLimitConfig
	Sweep             SweepConfig
	Audit             AuditConfig
	Metrics           MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the session token issuer.
type JWTConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration
}

/*
====================================
COOKIE CONFIG
====================================
*/

// CookieConfig configures the session cookie. Secure is derived from
// Environment unless ForceSecure is set.
type CookieConfig struct {
	Name        string
	Path        string
	Domain      string
	SameSite    http.SameSite
	ForceSecure bool
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig selects and tunes the credential hasher.
type PasswordConfig struct {
	Algorithm  string // "bcrypt" (default) or "argon2id"
	MinLength  int
	BcryptCost int

	Argon2Memory      uint32
	Argon2Time        uint32
	Argon2Parallelism uint8
	Argon2SaltLength  uint32
	Argon2KeyLength   uint32
}

/*
====================================
ONE-TIME TOKEN CONFIG
====================================
*/

// EmailVerificationConfig configures signup verification codes.
type EmailVerificationConfig struct {
	CodeDigits           int
	TTL                  time.Duration
	CodeCollisionRetries int
}

// PasswordResetConfig configures reset tokens.
type PasswordResetConfig struct {
	TokenBytes int
	TTL        time.Duration
	LinkPath   string
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitWindow is one sliding window budget.
type RateLimitWindow struct {
	Limit  int
	Window time.Duration
}

// RateLimitConfig holds the per-route windows.
type RateLimitConfig struct {
	Enabled        bool
	KeyPrefix      string
	Login          RateLimitWindow
	Signup         RateLimitWindow
	ForgotPassword RateLimitWindow
}

/*
====================================
SWEEP CONFIG
====================================
*/

// SweepConfig controls the background deletion of expired unverified accounts.
type SweepConfig struct {
	Enabled  bool
	Interval time.Duration
}

/*
====================================
AUDIT + METRICS CONFIG
====================================
*/

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 7-day sessions, bcrypt
// cost 12, 6-digit verification codes valid for 24 hours, 1-hour reset
// tokens and the login/signup/forgot-password rate windows.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Environment: EnvDevelopment,
		ClientURL:   "http://localhost:5173",
		JWT: JWTConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Cookie: CookieConfig{
			Name:     "token",
			Path:     "/",
			SameSite: http.SameSiteStrictMode,
		},
		Password: PasswordConfig{
			Algorithm:         "bcrypt",
			MinLength:         8,
			BcryptCost:        12,
			Argon2Memory:      65536,
			Argon2Time:        3,
			Argon2Parallelism: 2,
			Argon2SaltLength:  16,
			Argon2KeyLength:   32,
		},
		EmailVerification: EmailVerificationConfig{
			CodeDigits:           6,
			TTL:                  24 * time.Hour,
			CodeCollisionRetries: 5,
		},
		PasswordReset: PasswordResetConfig{
			TokenBytes: 20,
			TTL:        time.Hour,
			LinkPath:   "/reset-password/",
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			KeyPrefix:      "rl",
			Login:          RateLimitWindow{Limit: 3, Window: 15 * time.Minute},
			Signup:         RateLimitWindow{Limit: 3, Window: time.Hour},
			ForgotPassword: RateLimitWindow{Limit: 3, Window: 15 * time.Minute},
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// IsProduction reports whether the config runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment != EnvDevelopment
}

// SecureCookies reports whether the session cookie carries the Secure flag.
func (c *Config) SecureCookies() bool {
	return c.Cookie.ForceSecure || c.IsProduction()
}

// ResetURL builds the link embedded in the reset-request email.
func (c *Config) ResetURL(token string) string {
	return strings.TrimRight(c.ClientURL, "/") + c.PasswordReset.LinkPath + token
}

// Window returns the budget for route and whether the route is limited.
func (c *RateLimitConfig) Window(route RateLimitRoute) (RateLimitWindow, bool) {
	switch route {
	case RouteLogin:
		return c.Login, true
	case RouteSignup:
		return c.Signup, true
	case RouteForgotPassword:
		return c.ForgotPassword, true
	default:
		return RateLimitWindow{}, false
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations that would make a flow unsafe or unusable.
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return errors.New("Environment must be 'development' or 'production'")
	}
	if strings.TrimSpace(c.ClientURL) == "" {
		return errors.New("ClientURL must be set")
	}

	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret must be set")
	}
	if c.IsProduction() && len(c.JWT.Secret) < 32 {
		return errors.New("JWT Secret must be at least 32 bytes in production")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("JWT TTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must be set")
	}
	if c.Cookie.SameSite == http.SameSiteNoneMode && !c.SecureCookies() {
		return errors.New("SameSite=None requires secure cookies")
	}

	// Password
	switch c.Password.Algorithm {
	case "bcrypt":
		if c.Password.BcryptCost < 10 || c.Password.BcryptCost > 31 {
			return errors.New("Password BcryptCost must be between 10 and 31")
		}
	case "argon2id":
		if c.Password.Argon2Memory < 8*1024 {
			return errors.New("Password Argon2Memory must be >= 8192 KB")
		}
		if c.Password.Argon2Time < 1 {
			return errors.New("Password Argon2Time must be >= 1")
		}
		if c.Password.Argon2Parallelism < 1 {
			return errors.New("Password Argon2Parallelism must be >= 1")
		}
		if c.Password.Argon2SaltLength < 16 {
			return errors.New("Password Argon2SaltLength must be >= 16")
		}
		if c.Password.Argon2KeyLength < 16 {
			return errors.New("Password Argon2KeyLength must be >= 16")
		}
	default:
		return errors.New("Password Algorithm must be 'bcrypt' or 'argon2id'")
	}
	if c.Password.MinLength < 8 {
		return errors.New("Password MinLength must be >= 8")
	}

	// One-time tokens
	if c.EmailVerification.CodeDigits < 6 || c.EmailVerification.CodeDigits > 10 {
		return errors.New("EmailVerification CodeDigits must be between 6 and 10")
	}
	if c.EmailVerification.TTL <= 0 {
		return errors.New("EmailVerification TTL must be > 0")
	}
	if c.EmailVerification.CodeCollisionRetries <= 0 {
		return errors.New("EmailVerification CodeCollisionRetries must be > 0")
	}
	if c.PasswordReset.TokenBytes < 16 {
		return errors.New("PasswordReset TokenBytes must be >= 16")
	}
	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}
	if !strings.HasPrefix(c.PasswordReset.LinkPath, "/") {
		return errors.New("PasswordReset LinkPath must start with '/'")
	}

	// Rate limits
	if c.RateLimit.Enabled {
		if c.RateLimit.KeyPrefix == "" {
			return errors.New("RateLimit KeyPrefix must be set")
		}
		for name, w := range map[string]RateLimitWindow{
			"Login":          c.RateLimit.Login,
			"Signup":         c.RateLimit.Signup,
			"ForgotPassword": c.RateLimit.ForgotPassword,
		} {
			if w.Limit <= 0 || w.Window <= 0 {
				return errors.New("RateLimit " + name + " window must have Limit > 0 and Window > 0")
			}
		}
	}

	// Sweep
	if c.Sweep.Enabled && c.Sweep.Interval < time.Second {
		return errors.New("Sweep Interval must be >= 1s")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
