package authflow

import (
	"errors"
	"net/http"
)

// Kind classifies an error into the response class the HTTP layer renders.
type Kind uint8

const (
	// KindInternal covers store, hashing, signing and mail transport faults.
	KindInternal Kind = iota
	// KindValidation is a malformed or incomplete request.
	KindValidation
	// KindUnauthorized is a missing, invalid or rejected credential.
	KindUnauthorized
	// KindForbidden is an authenticated caller not allowed to proceed yet.
	KindForbidden
	// KindNotFound is an addressed record that does not exist.
	KindNotFound
	// KindConflict is a write rejected by a uniqueness constraint.
	KindConflict
	// KindRateLimited is a request over its per-client budget.
	KindRateLimited
)

// String returns the lower-case name of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a business rejection whose Message is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	// ErrMissingFields is returned when a required request field is empty.
	ErrMissingFields = newError(KindValidation, "All fields are required")
	// ErrPasswordTooShort is returned for passwords under the minimum length.
	ErrPasswordTooShort = newError(KindValidation, "Password must be at least 8 characters")
	// ErrInvalidCode is returned when no unexpired user holds the verification code.
	ErrInvalidCode = newError(KindValidation, "Invalid or expired verification code")
	// ErrInvalidResetToken is returned when no unexpired user holds the reset token.
	ErrInvalidResetToken = newError(KindValidation, "Invalid or expired reset token")
	// ErrInvalidCredentials is shared by the unknown-email and wrong-password login paths.
	ErrInvalidCredentials = newError(KindUnauthorized, "Invalid email or password")
	// ErrUnauthorized is returned when a session resolves to no user.
	ErrUnauthorized = newError(KindUnauthorized, "Unauthorized - user not found")
	// ErrNoToken is returned by the session guard when the cookie is absent.
	ErrNoToken = newError(KindUnauthorized, "Unauthorized, please login")
	// ErrInvalidToken is returned for every malformed, tampered or expired session token.
	ErrInvalidToken = newError(KindUnauthorized, "Invalid or expired token")
	// ErrEmailNotVerified is returned by login for an unverified account.
	ErrEmailNotVerified = newError(KindForbidden, "Please verify your email before logging in")
	// ErrUserNotFound is returned by forgot-password for an unknown email.
	ErrUserNotFound = newError(KindNotFound, "User not found")
	// ErrUserExists is returned by signup when the email is already registered.
	ErrUserExists = newError(KindConflict, "User already exists")
	// ErrRateLimited is returned when a client exceeds a route budget.
	ErrRateLimited = newError(KindRateLimited, "Too many requests, please try again later")
	// ErrInternal is the only message clients see for internal faults.
	ErrInternal = newError(KindInternal, "Internal server error")
)

// Store contract errors. UserStore implementations wrap these so the engine
// can classify write conflicts without importing a driver.
var (
	ErrRecordNotFound   = errors.New("user record not found")
	ErrDuplicateEmail   = errors.New("duplicate email")
	ErrDuplicateCode    = errors.New("duplicate verification code")
	ErrEngineNotReady   = errors.New("engine not initialized")
	ErrRateLimiterUnset = errors.New("rate limiter not configured")
)

// KindOf classifies err. Anything that is not an *Error is KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// PublicMessage returns the message a client may see for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ErrInternal.Message
}
