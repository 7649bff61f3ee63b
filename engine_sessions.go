package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate/session"
)

// Sessions lists the user's device sessions, newest first. Revoked sessions
// appear with their status and reason until they age out, so a user can see
// what was closed and why.
func (e *Engine) Sessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", ErrValidation)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	sessions, err := e.sessions.ListForUser(sctx, userID)
	if err != nil {
		return nil, mapBackendErr(err)
	}
	return sessions, nil
}

// RevokeSession closes one of the user's sessions. Revocation is terminal
// and idempotent, and it does not retract access tokens the session already
// produced; those expire on their own schedule.
//
// A session belonging to someone else is reported as ErrNotFound, the same
// as one that never existed.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID, reason string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if userID == "" || sessionID == "" {
		return fmt.Errorf("%w: user id and session id required", ErrValidation)
	}
	if reason == "" {
		reason = "user revoked"
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	sess, err := e.sessions.Get(sctx, sessionID)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return mapBackendErr(err)
	}
	if sess.UserID != userID {
		return ErrNotFound
	}

	if err := e.sessions.Revoke(sctx, sessionID, reason, time.Now()); err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return mapBackendErr(err)
	}

	e.metricInc(MetricSessionRevoked)
	e.emitAudit(ctx, EventSessionRevoked, true, userID, sessionID, nil, func() map[string]string {
		return map[string]string{"reason": reason}
	})

	return nil
}

// RevokeAllSessions closes every active session of the user and reports how
// many were closed. It is a registry operation only: the stored refresh
// token survives, so an agent still holding it can open a new session.
// Callers wanting a hard logout pair this with Logout or a password reset.
func (e *Engine) RevokeAllSessions(ctx context.Context, userID, reason string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	if userID == "" {
		return 0, fmt.Errorf("%w: user id required", ErrValidation)
	}
	if reason == "" {
		reason = "user revoked all"
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	revoked, err := e.sessions.RevokeAllForUser(sctx, userID, reason, time.Now())
	if err != nil {
		return revoked, mapBackendErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, EventSessionsRevokeAll, true, userID, "", nil, func() map[string]string {
		return map[string]string{
			"reason":  reason,
			"revoked": fmt.Sprintf("%d", revoked),
		}
	})

	return revoked, nil
}
