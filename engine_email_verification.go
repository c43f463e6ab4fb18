package authflow

import "context"

// VerifyEmail consumes a verification code, marks its account verified,
// sends the welcome email and returns a fresh session. The code alone
// establishes identity.
func (e *Engine) VerifyEmail(ctx context.Context, code string) (*SessionResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	out, err := e.flow.VerifyEmail(ctx, code)
	if err != nil {
		return nil, e.finish(ctx, "VerifyEmail", err)
	}
	return e.sessionResult(out), nil
}
