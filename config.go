package authgate

import (
	"errors"
	"time"
)

// Config groups every tunable of the engine. Construct one with
// DefaultConfig, adjust, and hand it to the Builder; after Build the engine
// works on a private clone and never observes later mutation.
type Config struct {
	JWT          JWTConfig
	Account      AccountConfig
	Throttle     ThrottleConfig
	Session      SessionConfig
	Password     PasswordConfig
	Verification VerificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
	Security     SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing and lifetimes.
//
// The three expiry fields are strings on purpose: deployments configure them
// as "7d", "24h", "90m" or a bare number of seconds. They are normalized
// through the s/m/h/d unit table at Build time; a malformed value falls back
// to the field's default instead of failing engine construction.
type JWTConfig struct {
	SigningMethod string // "hs256" (default) or "ed25519"
	Secret        []byte // hs256 key
	PrivateKey    []byte // ed25519 seed or private key
	PublicKey     []byte // ed25519 public key

	AccessExpiry  string // default "7d"
	RefreshExpiry string // default "30d"
	ResetExpiry   string // default "1h"

	Issuer   string
	Audience string
	Leeway   time.Duration
}

/*
====================================
ACCOUNT CONFIG
====================================
*/

// AccountConfig configures registration.
type AccountConfig struct {
	// DefaultRole is stamped onto newly registered credentials and carried
	// into their access tokens.
	DefaultRole string
	// MinPasswordLength is enforced at registration and password reset.
	MinPasswordLength int
}

/*
====================================
THROTTLE CONFIG
====================================
*/

// ThrottleConfig bounds failed logins per email and per client address.
type ThrottleConfig struct {
	// Window is the sliding interval inside which failures count.
	Window time.Duration
	// MaxAttempts is the failure count at which further logins are denied.
	MaxAttempts int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the device-session registry.
type SessionConfig struct {
	RedisPrefix string
	// Lifetime caps a session record. Zero means "as long as the refresh
	// token", which is what the registry is tracking anyway.
	Lifetime time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig carries argon2id parameters. Memory is in KB.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig configures the email-verification challenges issued at
// registration: a long opaque link token and a 6-digit OTP, independently
// redeemable.
type VerificationConfig struct {
	LinkTTL time.Duration
	OTPTTL  time.Duration

	// LinkBaseURL prefixes the link token in outbound mail, e.g.
	// "https://app.example.com/verify-email?token=".
	LinkBaseURL string

	// ResendLink controls whether ResendVerification issues a fresh link
	// token alongside the fresh OTP. Off by default: the common resend case
	// is a user waiting at the OTP prompt.
	ResendLink bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig configures the async security-event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull sheds events instead of blocking the caller when the buffer
	// is full. Dropped events are counted and visible via Engine.AuditDropped.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig configures the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig carries cross-cutting hardening knobs.
type SecurityConfig struct {
	// StoreTimeout bounds every credential/session/throttle store call. On
	// expiry the engine surfaces ErrServiceUnavailable, never a false
	// negative.
	StoreTimeout time.Duration

	// ProductionMode tightens Validate: it rejects short hs256 secrets and
	// disabled auditing.
	ProductionMode bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the configuration the engine was designed around:
// 7-day access tokens, 30-day rotated refresh tokens, a 15-minute/5-attempt
// login throttle, 24-hour links and 15-minute OTPs.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SigningMethod: "hs256",
			AccessExpiry:  "7d",
			RefreshExpiry: "30d",
			ResetExpiry:   "1h",
			Leeway:        30 * time.Second,
		},
		Account: AccountConfig{
			DefaultRole:       "user",
			MinPasswordLength: 8,
		},
		Throttle: ThrottleConfig{
			Window:      15 * time.Minute,
			MaxAttempts: 5,
		},
		Session: SessionConfig{
			RedisPrefix: "ag",
		},
		Password: PasswordConfig{
			Memory:      65536,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Verification: VerificationConfig{
			LinkTTL: 24 * time.Hour,
			OTPTTL:  15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		Security: SecurityConfig{
			StoreTimeout: 5 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
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

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration for values the engine cannot run with.
// It returns the first violation found. Expiry strings are not validated
// here; malformed ones fall back to their defaults at Build time.
func (c *Config) Validate() error {
	// JWT
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.Secret) == 0 {
			return errors.New("hs256 requires Secret")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Account
	if c.Account.DefaultRole == "" {
		return errors.New("Account DefaultRole must not be empty")
	}
	if c.Account.MinPasswordLength < 8 {
		return errors.New("Account MinPasswordLength must be >= 8")
	}

	// Throttle
	if c.Throttle.Window <= 0 {
		return errors.New("Throttle Window must be > 0")
	}
	if c.Throttle.MaxAttempts <= 0 {
		return errors.New("Throttle MaxAttempts must be > 0")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must not be empty")
	}
	if c.Session.Lifetime < 0 {
		return errors.New("Session Lifetime must be >= 0")
	}

	// Password
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return errors.New("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return errors.New("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return errors.New("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return errors.New("Password KeyLength must be >= 16")
	}

	// Verification
	if c.Verification.LinkTTL <= 0 {
		return errors.New("Verification LinkTTL must be > 0")
	}
	if c.Verification.OTPTTL <= 0 {
		return errors.New("Verification OTPTTL must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Security
	if c.Security.StoreTimeout <= 0 {
		return errors.New("Security StoreTimeout must be > 0")
	}
	if c.Security.ProductionMode {
		if c.JWT.SigningMethod == "hs256" && len(c.JWT.Secret) < 32 {
			return errors.New("production mode requires an hs256 Secret of at least 32 bytes")
		}
		if !c.Audit.Enabled {
			return errors.New("production mode requires auditing to be enabled")
		}
	}

	return nil
}
