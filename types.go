package authflow

import (
	"context"
	"time"
)

// User is the persisted account record. PasswordHash never leaves the
// server: use [User.Public] for anything written to a response.
type User struct {
	ID                         string
	Email                      string
	Name                       string
	PasswordHash               string
	IsVerified                 bool
	VerificationToken          string
	VerificationTokenExpiresAt time.Time
	ResetPasswordToken         string
	ResetPasswordExpiresAt     time.Time
	LastLogin                  time.Time
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// PublicUser is the sanitized user shape returned to clients.
type PublicUser struct {
	ID         string    `json:"_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	IsVerified bool      `json:"isVerified"`
	LastLogin  time.Time `json:"lastLogin"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Public strips the credential and one-time token fields.
func (u *User) Public() PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		IsVerified: u.IsVerified,
		LastLogin:  u.LastLogin,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// SignupRequest carries the registration form.
type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// LoginRequest carries the credential form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResult is returned by every flow that establishes a session. The
// caller is responsible for delivering Token to the client as a cookie.
type SessionResult struct {
	User      PublicUser
	Token     string
	ExpiresAt time.Time
}

// UserStore persists user records. Implementations must enforce email
// uniqueness at write time and must treat a token whose expiry has passed as
// absent. The Consume methods clear the matching token and apply the state
// change in a single atomic write.
//
// Errors: lookups that match nothing return an error wrapping
// [ErrRecordNotFound]; CreateUser returns [ErrDuplicateEmail] or
// [ErrDuplicateCode] when a unique constraint rejects the insert.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	SetResetToken(ctx context.Context, id, token string, expiresAt time.Time) error
	ConsumeVerificationToken(ctx context.Context, code string, now time.Time) (*User, error)
	ConsumeResetToken(ctx context.Context, token, newPasswordHash string, now time.Time) (*User, error)
	DeleteUnverifiedExpired(ctx context.Context, now time.Time) (int64, error)
	Ping(ctx context.Context) error
}

// Notifier delivers the account lifecycle emails. Every method is awaited by
// the flow that calls it and its error fails the request.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, code string) error
	SendWelcomeEmail(ctx context.Context, to, name string) error
	SendPasswordResetEmail(ctx context.Context, to, resetURL string) error
	SendResetSuccessEmail(ctx context.Context, to string) error
}

// PasswordHasher hashes and verifies credentials. Verify reports a mismatch
// as (false, nil) and only errors on a malformed digest.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) (bool, error)
}

// RateLimitRoute names a rate-limited route group.
type RateLimitRoute string

const (
	RouteLogin          RateLimitRoute = "login"
	RouteSignup         RateLimitRoute = "signup"
	RouteForgotPassword RateLimitRoute = "forgot_password"
)

// RateLimitDecision reports the outcome of one rate-limit check.
type RateLimitDecision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// SweepResult reports one pass of the unverified-account sweep.
type SweepResult struct {
	Deleted  int64
	Duration time.Duration
}
