package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Register creates a pending credential and issues its email-verification
// challenges: a link token and a 6-digit OTP, delivered together and
// redeemable independently. The credential cannot log in until one of them
// is redeemed.
//
// The challenges are also returned so callers without a MailService can
// deliver them through their own channel. If challenge storage fails the
// registration still stands; the user recovers via ResendVerification.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(req.Password) < e.config.Account.MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, e.config.Account.MinPasswordLength)
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	cred := &Credential{
		ID:           uuid.NewString(),
		Email:        email,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		PasswordHash: hash,
		Role:         e.config.Account.DefaultRole,
		Status:       AccountPending,
		CreatedAt:    time.Now(),
	}

	sctx, cancel := e.storeCtx(ctx)
	err = e.credentials.Create(sctx, cred)
	cancel()
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			e.metricInc(MetricRegisterDuplicate)
			e.emitAudit(ctx, EventRegister, false, "", "", ErrAccountExists, func() map[string]string {
				return map[string]string{"email": email}
			})
			return nil, ErrAccountExists
		}
		return nil, mapCredentialErr(err)
	}

	link, otp, err := e.issueVerification(ctx, cred.ID, email, verificationIssue{withLink: true})
	if err != nil {
		// The account exists either way; the user gets fresh challenges
		// through ResendVerification.
		log.Print("authgate: could not issue verification challenges at registration")
		link, otp = "", ""
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, EventRegister, true, cred.ID, "", nil, func() map[string]string {
		return map[string]string{
			"email":                email,
			"verification_pending": fmt.Sprintf("%t", otp != ""),
		}
	})

	return &RegisterResult{
		UserID:    cred.ID,
		Email:     email,
		LinkToken: link,
		OTPCode:   otp,
	}, nil
}

// validateEmail admits exactly the addresses net/mail can parse as a bare
// address.
func validateEmail(email string) error {
	if email == "" || len(email) > 254 {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}
