package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate/internal"
	"github.com/sablehq/authgate/internal/stores"
)

// Refresh exchanges a refresh token for a fresh access/refresh pair and
// retires the presented token.
//
// Rotation is an atomic compare-and-swap on the user's stored token hash:
// when several calls race with the same token, exactly one wins, the others
// get ErrTokenReplayed, and the winner's new pair stays live. A replayed
// token is audited with the presenting address so operators can tell a
// double-clicking client from a stolen token.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if refreshToken == "" {
		return nil, ErrTokenInvalid
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		return nil, mapTokenErr(err)
	}
	userID := claims.Subject
	sessionID := claims.SessionID

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	cred, err := e.credentials.FindByID(sctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.metricInc(MetricRefreshFailure)
			return nil, ErrTokenInvalid
		}
		return nil, mapCredentialErr(err)
	}
	if cred.Status != AccountActive {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, EventTokenRefresh, false, userID, sessionID, ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	// Mint the replacement pair up front; the new refresh hash has to go
	// into the swap.
	accessJTI := uuid.NewString()
	newAccess, err := e.jwtManager.CreateAccess(userID, cred.Role, accessJTI)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", ErrServiceUnavailable, err)
	}
	newRefresh, err := e.jwtManager.CreateRefresh(userID, sessionID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: sign refresh token: %v", ErrServiceUnavailable, err)
	}

	presentedHash := internal.HashToken(refreshToken)
	nextHash := internal.HashToken(newRefresh)

	err = e.vault.Rotate(sctx, userID, presentedHash, nextHash, e.jwtManager.RefreshTTL())
	switch {
	case err == nil:
		// Rotation won; fall through.
	case errors.Is(err, stores.ErrRefreshEmpty):
		// Nothing stored: the user logged out (or never logged in here).
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, EventTokenRefresh, false, userID, sessionID, ErrTokenInvalid, nil)
		return nil, ErrTokenInvalid
	case errors.Is(err, stores.ErrRefreshMismatch):
		e.metricInc(MetricReplayDetected)
		e.emitAudit(ctx, EventTokenReplay, false, userID, sessionID, ErrTokenReplayed, nil)
		return nil, ErrTokenReplayed
	default:
		return nil, mapBackendErr(err)
	}

	if err := e.credentials.UpdateRefreshToken(sctx, userID, nextHash); err != nil {
		log.Print("authgate: refresh token mirror update failed")
	}

	// Move the session's activity marker and re-point it at the new access
	// token. A missing or revoked session does not block the refresh; the
	// vault has already spoken.
	if err := e.sessions.Touch(sctx, sessionID, accessJTI, time.Now()); err != nil && !errors.Is(err, redis.Nil) {
		log.Print("authgate: session touch on refresh failed")
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, EventTokenRefresh, true, userID, sessionID, nil, nil)

	return &TokenPair{
		AccessToken:  newAccess,
		RefreshToken: newRefresh,
		ExpiresIn:    int64(e.jwtManager.AccessTTL() / time.Second),
	}, nil
}
