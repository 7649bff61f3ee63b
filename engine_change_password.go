package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ChangePassword rotates a logged-in user's password. The old password must
// verify first; this is not a reset path and does not accept tokens. On
// success every refresh token and session minted under the old password is
// revoked, so other devices have to log in again.
func (e *Engine) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" || oldPassword == "" {
		return fmt.Errorf("%w: user and current password are required", ErrValidation)
	}
	if len(newPassword) < e.config.Account.MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrValidation, e.config.Account.MinPasswordLength)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	cred, err := e.credentials.FindByID(sctx, userID)
	if err != nil {
		return mapCredentialErr(err)
	}

	ok, err := e.passwordHash.Verify(oldPassword, cred.PasswordHash)
	if err != nil || !ok {
		e.emitAudit(ctx, EventPasswordChanged, false, userID, "", ErrInvalidCredentials, func() map[string]string {
			return map[string]string{"reason": "old_password_mismatch"}
		})
		return ErrInvalidCredentials
	}

	// Re-submitting the current password would "rotate" to the same secret
	// and silently keep every stolen session alive.
	if same, err := e.passwordHash.Verify(newPassword, cred.PasswordHash); err == nil && same {
		return fmt.Errorf("%w: new password must differ from the current one", ErrValidation)
	}

	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if err := e.credentials.ResetPassword(sctx, userID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return mapCredentialErr(err)
	}

	e.retireCredentialAccess(sctx, userID, "password change")

	if err := e.throttle.ClearOnSuccess(ctx, cred.Email, clientAddressFromContext(ctx)); err != nil {
		log.Print("authgate: login throttle reset after password change failed")
	}

	e.metricInc(MetricPasswordChanged)
	e.emitAudit(ctx, EventPasswordChanged, true, userID, "", nil, nil)

	return nil
}
