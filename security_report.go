package authgate

import "time"

// SecurityReport summarizes the engine's effective security posture: the
// resolved token lifetimes (after duration-string normalization), hashing
// cost, throttle shape and audit state. Intended for startup logs and
// operational checklists.
type SecurityReport struct {
	ProductionMode   bool
	SigningAlgorithm string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	Argon2 PasswordConfigReport

	ThrottleWindow      time.Duration
	ThrottleMaxAttempts int

	VerificationLinkTTL time.Duration
	VerificationOTPTTL  time.Duration

	AuditEnabled  bool
	AuditDropped  uint64
	MailAttached  bool
	MetricsActive bool
}

// PasswordConfigReport is the argon2id parameter set in effect.
type PasswordConfigReport struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// SecurityReport reads the live engine; TTLs come from the jwt manager, not
// the raw config strings, so the report shows what is actually enforced.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil || e.jwtManager == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.jwtManager.AccessTTL(),
		RefreshTTL:       e.jwtManager.RefreshTTL(),
		ResetTTL:         e.jwtManager.ResetTTL(),
		Argon2: PasswordConfigReport{
			Memory:      e.config.Password.Memory,
			Time:        e.config.Password.Time,
			Parallelism: e.config.Password.Parallelism,
			SaltLength:  e.config.Password.SaltLength,
			KeyLength:   e.config.Password.KeyLength,
		},
		ThrottleWindow:      e.config.Throttle.Window,
		ThrottleMaxAttempts: e.config.Throttle.MaxAttempts,
		VerificationLinkTTL: e.config.Verification.LinkTTL,
		VerificationOTPTTL:  e.config.Verification.OTPTTL,
		AuditEnabled:        e.config.Audit.Enabled,
		AuditDropped:        e.AuditDropped(),
		MailAttached:        e.mail != nil,
		MetricsActive:       e.metrics.Enabled(),
	}
}
