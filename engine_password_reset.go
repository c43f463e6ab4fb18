package authflow

import "context"

// ForgotPassword stores a reset token for email and mails the reset link.
// Unknown addresses return [ErrUserNotFound].
func (e *Engine) ForgotPassword(ctx context.Context, email string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.finish(ctx, "ForgotPassword", e.flow.ForgotPassword(ctx, email))
}

// ResetPassword replaces the password of the account holding token and
// sends the confirmation email. A used or expired token returns
// [ErrInvalidResetToken].
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.finish(ctx, "ResetPassword", e.flow.ResetPassword(ctx, token, newPassword))
}
