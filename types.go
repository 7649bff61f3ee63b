package authgate

import (
	"context"
	"time"
)

// AccountStatus represents the lifecycle state of a credential.
type AccountStatus uint8

const (
	// AccountPending is the state between registration and email verification.
	AccountPending AccountStatus = iota
	// AccountActive allows login.
	AccountActive
	// AccountInactive is an operator-disabled credential.
	AccountInactive
)

func (s AccountStatus) String() string {
	switch s {
	case AccountPending:
		return "pending"
	case AccountActive:
		return "active"
	case AccountInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Credential is the engine's view of a stored identity. The consumer owns
// the persistence; the engine only reads these fields and asks the store to
// mutate them through the CredentialStore methods.
type Credential struct {
	ID            string
	Email         string
	FirstName     string
	LastName      string
	PasswordHash  string
	Role          string
	Status        AccountStatus
	EmailVerified bool

	// RefreshToken and ResetToken mirror the SHA-256 hex of the currently
	// valid token of each kind, or "" when none is outstanding.
	RefreshToken string
	ResetToken   string

	CreatedAt   time.Time
	LastLoginAt time.Time
}

// CredentialStore is the consumer-provided persistence for credentials.
//
// Implementations must treat email lookups as case-insensitive (the engine
// folds input before calling) and return ErrNotFound when no credential
// matches. All methods may be called concurrently. The engine bounds every
// call with a deadline; implementations should respect ctx cancellation.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	FindByID(ctx context.Context, id string) (*Credential, error)

	// Create persists a new credential. ErrAccountExists when the email is
	// already registered.
	Create(ctx context.Context, cred *Credential) error

	// UpdateRefreshToken mirrors the hash of the live refresh token.
	// An empty hash clears the mirror.
	UpdateRefreshToken(ctx context.Context, userID, tokenHash string) error

	// SetResetToken mirrors the hash of the outstanding reset token.
	// An empty hash clears it.
	SetResetToken(ctx context.Context, userID, tokenHash string) error

	// ResetPassword replaces the password hash and is expected to clear the
	// reset-token mirror in the same write.
	ResetPassword(ctx context.Context, userID, passwordHash string) error

	// VerifyEmail flips EmailVerified and moves a pending credential to
	// active. Idempotent.
	VerifyEmail(ctx context.Context, userID string) error

	UpdateLastLogin(ctx context.Context, userID string, at time.Time) error
}

// MailService delivers the emails this engine triggers. Failures are audited
// and swallowed; they never fail the originating operation.
type MailService interface {
	SendVerificationEmail(ctx context.Context, email, linkToken, otpCode string) error
	SendPasswordResetEmail(ctx context.Context, email, resetToken string) error
}

// RegisterRequest carries the fields accepted at signup.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// RegisterResult reports the created credential and the verification
// challenges that were issued for it. LinkToken and OTPCode are returned so
// callers without a MailService (tests, CLIs) can complete verification.
type RegisterResult struct {
	UserID    string
	Email     string
	LinkToken string
	OTPCode   string
}

// TokenPair is an access/refresh token set. ExpiresIn is the access token
// lifetime normalized to whole seconds.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

// LoginResult is returned by Engine.Login.
type LoginResult struct {
	UserID    string
	Email     string
	Role      string
	SessionID string
	TokenPair
}
