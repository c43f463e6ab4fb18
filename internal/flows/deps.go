package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Signup         SignupDeps
	Login          LoginDeps
	VerifyEmail    VerifyEmailDeps
	ForgotPassword ForgotPasswordDeps
	ResetPassword  ResetPasswordDeps
	CheckAuth      CheckAuthDeps
	Sweep          SweepDeps
}

// UserRecord is the flow-local user model. The engine converts to and from
// its public User type at the boundary.
type UserRecord struct {
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

// SessionOutcome is returned by flows that authenticate the caller.
type SessionOutcome struct {
	User      UserRecord
	Token     string
	ExpiresAt time.Time
}

// AuditFunc emits one audit event. metadata is only invoked when auditing is on.
type AuditFunc func(ctx context.Context, event string, success bool, userID, email string, err error, metadata func() map[string]string)

// StoreErrors lets flows classify store failures without importing the root
// package.
type StoreErrors struct {
	RecordNotFound error
	DuplicateEmail error
	DuplicateCode  error
}

func noopAudit(context.Context, string, bool, string, string, error, func() map[string]string) {}

func noopMetric(int) {}

func noopObserve(int, time.Duration) {}

func noopMail(context.Context, string, string) error { return nil }
