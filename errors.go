package authgate

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials covers unknown emails and wrong passwords alike,
	// so callers cannot probe which accounts exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while the login throttle window is closed.
	ErrAccountLocked = errors.New("too many attempts, retry later")
	// ErrEmailNotVerified is returned when the password matched but the
	// credential's email was never verified.
	ErrEmailNotVerified = errors.New("email not verified")
	// ErrAccountInactive is returned for credentials disabled by an operator.
	ErrAccountInactive = errors.New("account inactive")
	// ErrAccountExists is returned by Register when the email is taken.
	ErrAccountExists = errors.New("account already exists")

	// ErrTokenExpired means the token verified but its validity window passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is the generic outcome for malformed, forged, consumed
	// or unknown tokens. Callers are deliberately not told which.
	ErrTokenInvalid = errors.New("invalid or expired token")
	// ErrTokenReplayed means a refresh token was presented again after it had
	// already been rotated. Worth auditing: someone holds a stale copy.
	ErrTokenReplayed = errors.New("token replay detected")

	// ErrValidation covers malformed input: bad email syntax, short
	// passwords, non-numeric OTP codes.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a session or record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrServiceUnavailable wraps store timeouts and backend outages. It is
	// retryable and never stands in for a definitive "no".
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrEngineNotReady is returned when a component was not wired by Build.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ThrottledError carries the lockout hint alongside ErrAccountLocked.
// RetryAfter counts from the oldest failed attempt still inside the window,
// so it shrinks as the window slides.
type ThrottledError struct {
	RetryAfter time.Duration
}

func (e *ThrottledError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", ErrAccountLocked, e.RetryAfter.Round(time.Second))
}

func (e *ThrottledError) Unwrap() error { return ErrAccountLocked }
