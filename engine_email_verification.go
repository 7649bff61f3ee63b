package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate/internal"
	"github.com/sablehq/authgate/internal/stores"
)

// otpDrawAttempts bounds the redraws when a freshly generated code is
// already held by another pending verification.
const otpDrawAttempts = 5

// verificationIssue selects which challenges an issuance mints. The OTP is
// always included; the link is optional because resends usually target a
// user already waiting at an OTP prompt.
type verificationIssue struct {
	withLink bool
	resend   bool
}

// issueVerification mints and stores the email-verification challenges for
// a user, mails them when a MailService is attached, and returns the
// plaintext artifacts. Earlier outstanding challenges are left untouched.
func (e *Engine) issueVerification(ctx context.Context, userID, email string, issue verificationIssue) (link, otp string, err error) {
	rec := stores.Pending{
		UserID:   userID,
		Email:    email,
		IssuedAt: time.Now().Unix(),
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	// Codes are looked up by value alone, so an in-flight code belonging to
	// someone else must not be overwritten. Collisions are rare enough that
	// a handful of redraws settles it.
	for attempt := 0; ; attempt++ {
		otp, err = internal.NewOTP()
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		stored, err := e.verifications.SaveOTP(sctx, otp, rec, e.config.Verification.OTPTTL)
		if err != nil {
			return "", "", mapBackendErr(err)
		}
		if stored {
			break
		}
		if attempt == otpDrawAttempts-1 {
			return "", "", fmt.Errorf("%w: could not place a verification code", ErrServiceUnavailable)
		}
	}

	if issue.withLink {
		link, err = internal.NewLinkToken()
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
		}
		// The plaintext link token never touches Redis, only its hash.
		if err := e.verifications.SaveLink(sctx, internal.HashToken(link), rec, e.config.Verification.LinkTTL); err != nil {
			return "", "", mapBackendErr(err)
		}
	}

	if e.mail != nil {
		if err := e.mail.SendVerificationEmail(ctx, email, e.verificationLink(link), otp); err != nil {
			log.Print("authgate: verification mail delivery failed")
		}
	}

	e.metricInc(MetricVerificationSent)
	e.emitAudit(ctx, EventVerificationSent, true, userID, "", nil, func() map[string]string {
		m := map[string]string{
			"email":     email,
			"with_link": fmt.Sprintf("%t", link != ""),
		}
		if issue.resend {
			m["resend"] = "true"
		}
		return m
	})

	return link, otp, nil
}

func (e *Engine) verificationLink(token string) string {
	if token == "" || e.config.Verification.LinkBaseURL == "" {
		return token
	}
	return e.config.Verification.LinkBaseURL + token
}

// RedeemVerificationLink proves email ownership with the link token. Each
// link is single-use; redeeming it leaves any outstanding OTP valid.
// Unknown, expired and already-used tokens are deliberately
// indistinguishable.
func (e *Engine) RedeemVerificationLink(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrTokenInvalid
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	rec, err := e.verifications.ConsumeLink(sctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.metricInc(MetricVerificationFailure)
			e.emitAudit(ctx, EventEmailVerified, false, "", "", ErrTokenInvalid, func() map[string]string {
				return map[string]string{"method": "link"}
			})
			return ErrTokenInvalid
		}
		return mapBackendErr(err)
	}

	return e.completeVerification(ctx, sctx, rec, "link")
}

// RedeemVerificationOTP proves email ownership with the 6-digit code sent
// alongside the link. Single-use, independent of the link, and addressed by
// the code alone; the pending record says whose email it verifies.
func (e *Engine) RedeemVerificationOTP(ctx context.Context, code string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if len(code) != 6 || !internal.IsNumeric(code) {
		return fmt.Errorf("%w: verification code must be 6 digits", ErrValidation)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	rec, err := e.verifications.ConsumeOTP(sctx, code)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			e.metricInc(MetricVerificationFailure)
			e.emitAudit(ctx, EventEmailVerified, false, "", "", ErrTokenInvalid, func() map[string]string {
				return map[string]string{"method": "otp"}
			})
			return ErrTokenInvalid
		}
		return mapBackendErr(err)
	}

	return e.completeVerification(ctx, sctx, rec, "otp")
}

func (e *Engine) completeVerification(ctx, sctx context.Context, rec stores.Pending, method string) error {
	if err := e.credentials.VerifyEmail(sctx, rec.UserID); err != nil {
		if errors.Is(err, ErrNotFound) {
			// The account vanished between issuance and redemption.
			return ErrTokenInvalid
		}
		return mapCredentialErr(err)
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, EventEmailVerified, true, rec.UserID, "", nil, func() map[string]string {
		return map[string]string{
			"email":  rec.Email,
			"method": method,
		}
	})

	return nil
}

// ResendVerification issues fresh challenges for a not-yet-verified email.
// It is enumeration-safe: unknown and already-verified addresses return
// success without doing anything. Fresh challenges do not invalidate
// earlier ones; everything outstanding stays redeemable until its TTL.
func (e *Engine) ResendVerification(ctx context.Context, email string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	sctx, cancel := e.storeCtx(ctx)
	cred, err := e.credentials.FindByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return mapCredentialErr(err)
	}
	if cred.EmailVerified {
		return nil
	}

	_, _, err = e.issueVerification(ctx, cred.ID, email, verificationIssue{
		withLink: e.config.Verification.ResendLink,
		resend:   true,
	})
	return err
}
