package authgate

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sablehq/authgate/internal"
)

// RequestPasswordReset starts a reset for the given email. It is silent
// about whether the account exists: unknown addresses return success and
// nothing happens. For a real account it signs a short-lived reset token,
// mirrors its hash into the credential record, and mails the token.
//
// The token is also returned for callers that deliver mail themselves. An
// HTTP surface must never echo it to the requester.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	cred, err := e.credentials.FindByEmail(sctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.emitAudit(ctx, EventResetRequested, false, "", "", nil, func() map[string]string {
				return map[string]string{
					"email":  email,
					"reason": "unknown_email",
				}
			})
			return "", nil
		}
		return "", mapCredentialErr(err)
	}

	token, err := e.jwtManager.CreateReset(cred.ID, uuid.NewString())
	if err != nil {
		return "", fmt.Errorf("%w: sign reset token: %v", ErrServiceUnavailable, err)
	}

	// The mirror is the stateful half of the reset pair: confirmation
	// requires the signed token AND a matching mirror, so issuing a new
	// token retires any earlier one.
	if err := e.credentials.SetResetToken(sctx, cred.ID, internal.HashToken(token)); err != nil {
		return "", mapCredentialErr(err)
	}

	if e.mail != nil {
		if err := e.mail.SendPasswordResetEmail(ctx, email, token); err != nil {
			log.Print("authgate: password reset mail delivery failed")
		}
	}

	e.metricInc(MetricResetRequested)
	e.emitAudit(ctx, EventResetRequested, true, cred.ID, "", nil, func() map[string]string {
		return map[string]string{"email": email}
	})

	return token, nil
}

// ConfirmPasswordReset sets a new password for the user named in the reset
// token. The token must verify and its hash must match the credential's
// mirror; either failing yields the same generic error. On success the
// mirror is cleared, the stored refresh token is revoked and every session
// is closed, so the new password is the only way back in.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrTokenInvalid
	}
	if len(newPassword) < e.config.Account.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, e.config.Account.MinPasswordLength)
	}

	claims, err := e.jwtManager.ParseReset(token)
	if err != nil {
		e.metricInc(MetricResetFailure)
		return mapTokenErr(err)
	}
	userID := claims.Subject

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	cred, err := e.credentials.FindByID(sctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricResetFailure)
			return ErrTokenInvalid
		}
		return mapCredentialErr(err)
	}

	// Both halves must agree: the signature proves the engine minted the
	// token, the mirror proves it is the latest one and unused.
	presented := internal.HashToken(token)
	if cred.ResetToken == "" ||
		subtle.ConstantTimeCompare([]byte(cred.ResetToken), []byte(presented)) != 1 {
		e.metricInc(MetricResetFailure)
		e.emitAudit(ctx, EventResetCompleted, false, userID, "", ErrTokenInvalid, func() map[string]string {
			return map[string]string{"reason": "mirror_mismatch"}
		})
		return ErrTokenInvalid
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	// ResetPassword clears the mirror in the same write, which is what
	// makes the token single-use.
	if err := e.credentials.ResetPassword(sctx, userID, hash); err != nil {
		return mapCredentialErr(err)
	}

	// Old refresh tokens and sessions die with the old password.
	e.retireCredentialAccess(sctx, userID, "password reset")

	if err := e.throttle.ClearOnSuccess(ctx, cred.Email, clientAddressFromContext(ctx)); err != nil {
		log.Print("authgate: login throttle reset after password reset failed")
	}

	e.metricInc(MetricResetSuccess)
	e.emitAudit(ctx, EventResetCompleted, true, userID, "", nil, nil)

	return nil
}

// retireCredentialAccess revokes everything minted under the previous
// password: the refresh vault entry, its credential mirror, and all live
// sessions. Best-effort on purpose; the password change itself has already
// committed and must not be reported as failed.
func (e *Engine) retireCredentialAccess(sctx context.Context, userID, reason string) {
	if err := e.vault.Clear(sctx, userID); err != nil {
		log.Print("authgate: vault clear after " + reason + " failed")
	}
	if err := e.credentials.UpdateRefreshToken(sctx, userID, ""); err != nil {
		log.Print("authgate: refresh token mirror clear after " + reason + " failed")
	}
	if _, err := e.sessions.RevokeAllForUser(sctx, userID, reason, time.Now()); err != nil {
		log.Print("authgate: session revocation after " + reason + " failed")
	}
}
