package authflow

import (
	"context"
	"errors"
)

const (
	auditEventSignupSuccess            = "signup_success"
	auditEventSignupFailure            = "signup_failure"
	auditEventSignupDuplicate          = "signup_duplicate"
	auditEventEmailVerified            = "email_verified"
	auditEventEmailVerificationFailure = "email_verification_failure"
	auditEventLoginSuccess             = "login_success"
	auditEventLoginFailure             = "login_failure"
	auditEventLogout                   = "logout"
	auditEventPasswordResetRequest     = "password_reset_request"
	auditEventPasswordResetConfirm     = "password_reset_confirm"
	auditEventRateLimitTriggered       = "rate_limit_triggered"
	auditEventAccountsSwept            = "accounts_swept"
)

// AuditReason is the machine-readable failure code carried by audit events.
type AuditReason string

const (
	auditReasonMissingFields      AuditReason = "missing_fields"
	auditReasonPasswordTooShort   AuditReason = "password_too_short"
	auditReasonInvalidCode        AuditReason = "invalid_code"
	auditReasonInvalidResetToken  AuditReason = "invalid_reset_token"
	auditReasonInvalidCredentials AuditReason = "invalid_credentials"
	auditReasonEmailNotVerified   AuditReason = "email_not_verified"
	auditReasonUserNotFound       AuditReason = "user_not_found"
	auditReasonUserExists         AuditReason = "user_exists"
	auditReasonRateLimited        AuditReason = "rate_limited"
	auditReasonUnauthorized       AuditReason = "unauthorized"
	auditReasonInternal           AuditReason = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		Type:      eventType,
		UserID:    userID,
		Email:     email,
		IP:        ClientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if reason := auditReason(err); reason != "" {
		event.Reason = string(reason)
	}

	e.audit.Emit(ctx, event)
}

func auditReason(err error) AuditReason {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrMissingFields):
		return auditReasonMissingFields
	case errors.Is(err, ErrPasswordTooShort):
		return auditReasonPasswordTooShort
	case errors.Is(err, ErrInvalidCode):
		return auditReasonInvalidCode
	case errors.Is(err, ErrInvalidResetToken):
		return auditReasonInvalidResetToken
	case errors.Is(err, ErrInvalidCredentials):
		return auditReasonInvalidCredentials
	case errors.Is(err, ErrEmailNotVerified):
		return auditReasonEmailNotVerified
	case errors.Is(err, ErrUserNotFound):
		return auditReasonUserNotFound
	case errors.Is(err, ErrUserExists):
		return auditReasonUserExists
	case errors.Is(err, ErrRateLimited):
		return auditReasonRateLimited
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrNoToken):
		return auditReasonUnauthorized
	default:
		return auditReasonInternal
	}
}
