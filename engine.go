package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate/internal"
	"github.com/sablehq/authgate/internal/stores"
	"github.com/sablehq/authgate/internal/throttle"
	"github.com/sablehq/authgate/jwt"
	"github.com/sablehq/authgate/password"
	"github.com/sablehq/authgate/session"
)

// Engine is the authentication core. Construct one through [New] and
// [Builder.Build]; the zero value is not usable. All methods are safe for
// concurrent use.
type Engine struct {
	config          Config
	credentials     CredentialStore
	mail            MailService
	jwtManager      *jwt.Manager
	passwordHash    *password.Argon2
	sessions        *session.Store
	vault           *stores.RefreshVault
	verifications   *stores.VerificationStore
	throttle        *throttle.Limiter
	audit           *auditDispatcher
	metrics         *Metrics
	sessionLifetime time.Duration
}

// Close drains and stops the audit dispatcher. Call it when the engine is
// retired; operations invoked after Close simply stop producing events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many security events were shed because the audit
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a detached copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) ready() bool {
	return e != nil &&
		e.credentials != nil &&
		e.jwtManager != nil &&
		e.passwordHash != nil &&
		e.sessions != nil &&
		e.vault != nil &&
		e.verifications != nil &&
		e.throttle != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// storeCtx bounds a store call so a hung backend surfaces as
// ErrServiceUnavailable instead of a stalled request.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if e.config.Security.StoreTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Security.StoreTimeout)
}

// emitAudit queues a security event. The metadata closure runs only when a
// dispatcher is attached, so callers can build maps lazily.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, userID, sessionID string, opErr error, metadata func() map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := SecurityEvent{
		Timestamp:     time.Now(),
		EventType:     eventType,
		UserID:        userID,
		SessionID:     sessionID,
		ClientAddress: clientAddressFromContext(ctx),
		UserAgent:     userAgentFromContext(ctx),
		Success:       success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	e.audit.Emit(ctx, event)
}

// mapCredentialErr passes the engine's own sentinels through and wraps
// everything else a credential store can return as ErrServiceUnavailable.
func mapCredentialErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAccountExists) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}

// mapBackendErr turns Redis-layer failures and store deadline hits into
// ErrServiceUnavailable.
func mapBackendErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	case errors.Is(err, session.ErrRedisUnavailable),
		errors.Is(err, stores.ErrRedisUnavailable),
		errors.Is(err, throttle.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	default:
		return err
	}
}

func mapTokenErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrExpired):
		return ErrTokenExpired
	default:
		return ErrTokenInvalid
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

/*
====================================
LOGIN
====================================
*/

// Login authenticates an email/password pair and opens a device session.
//
// The throttle is consulted first: while the window is closed the
// credentials are not even evaluated, and the denial does not extend the
// lockout. Wrong passwords and unknown emails are indistinguishable to the
// caller and both count toward the throttle; accounts that fail their
// status gates (unverified email, deactivated) are reported precisely and
// do not count. On success the engine issues an access/refresh pair,
// records the session, and clears the caller's failure history.
func (e *Engine) Login(ctx context.Context, email, pass string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || pass == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	addr := clientAddressFromContext(ctx)
	ua := userAgentFromContext(ctx)

	decision, err := e.throttle.Check(ctx, email, addr)
	if err != nil {
		// Fail open: a throttle outage must not lock everyone out. The
		// degraded check is still worth a line in the trail.
		log.Print("authgate: login throttle check failed, failing open")
		e.emitAudit(ctx, EventThrottleUnavailable, false, "", "", err, nil)
	}
	if !decision.Allowed {
		e.metricInc(MetricLoginThrottled)
		e.emitAudit(ctx, EventLoginThrottled, false, "", "", ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"email":       email,
				"retry_after": decision.RetryAfter.Round(time.Second).String(),
			}
		})
		return nil, &ThrottledError{RetryAfter: decision.RetryAfter}
	}

	sctx, cancel := e.storeCtx(ctx)
	cred, err := e.credentials.FindByEmail(sctx, email)
	cancel()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			e.recordLoginFailure(ctx, email, addr, "", "unknown_email")
			return nil, ErrInvalidCredentials
		}
		return nil, mapCredentialErr(err)
	}

	ok, err := e.passwordHash.Verify(pass, cred.PasswordHash)
	if err != nil || !ok {
		e.recordLoginFailure(ctx, email, addr, cred.ID, "password_mismatch")
		return nil, ErrInvalidCredentials
	}

	// Status gates run after the password check and stay out of the
	// throttle: the caller proved who they are, the account is just not in
	// a loggable state.
	if !cred.EmailVerified {
		e.emitAudit(ctx, EventLoginFailure, false, cred.ID, "", ErrEmailNotVerified, nil)
		return nil, ErrEmailNotVerified
	}
	if cred.Status != AccountActive {
		e.emitAudit(ctx, EventLoginFailure, false, cred.ID, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	if err := e.throttle.ClearOnSuccess(ctx, email, addr); err != nil {
		log.Print("authgate: login throttle reset failed")
	}

	rehashNeeded := false
	if needs, err := e.passwordHash.NeedsUpgrade(cred.PasswordHash); err == nil && needs {
		rehashNeeded = true
		e.metricInc(MetricPasswordRehashNeeded)
	}

	now := time.Now()
	sessionID := uuid.NewString()
	accessJTI := uuid.NewString()

	accessToken, err := e.jwtManager.CreateAccess(cred.ID, cred.Role, accessJTI)
	if err != nil {
		return nil, fmt.Errorf("%w: sign access token: %v", ErrServiceUnavailable, err)
	}
	refreshToken, err := e.jwtManager.CreateRefresh(cred.ID, sessionID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("%w: sign refresh token: %v", ErrServiceUnavailable, err)
	}

	refreshHash := internal.HashToken(refreshToken)

	sctx, cancel = e.storeCtx(ctx)
	defer cancel()

	// The vault is the authority on which refresh token is live; a login
	// displaces whatever the user held before.
	if err := e.vault.Put(sctx, cred.ID, refreshHash, e.jwtManager.RefreshTTL()); err != nil {
		return nil, mapBackendErr(err)
	}
	if err := e.credentials.UpdateRefreshToken(sctx, cred.ID, refreshHash); err != nil {
		log.Print("authgate: refresh token mirror update failed")
	}

	sess := &session.Session{
		ID:            sessionID,
		UserID:        cred.ID,
		Token:         accessJTI,
		DeviceType:    session.ClassifyDevice(ua),
		Browser:       session.ClassifyBrowser(ua),
		ClientAddress: addr,
		Status:        session.StatusActive,
		CreatedAt:     now.Unix(),
		LastActivity:  now.Unix(),
		ExpiresAt:     now.Add(e.sessionLifetime).Unix(),
	}
	if err := e.sessions.Create(sctx, sess, e.sessionLifetime); err != nil {
		return nil, mapBackendErr(err)
	}

	if err := e.credentials.UpdateLastLogin(sctx, cred.ID, now); err != nil {
		log.Print("authgate: last login update failed")
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, EventLoginSuccess, true, cred.ID, sessionID, nil, func() map[string]string {
		m := map[string]string{
			"email":   email,
			"device":  string(sess.DeviceType),
			"browser": string(sess.Browser),
		}
		if rehashNeeded {
			m["password_rehash"] = "needed"
		}
		return m
	})

	return &LoginResult{
		UserID:    cred.ID,
		Email:     cred.Email,
		Role:      cred.Role,
		SessionID: sessionID,
		TokenPair: TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			ExpiresIn:    int64(e.jwtManager.AccessTTL() / time.Second),
		},
	}, nil
}

func (e *Engine) recordLoginFailure(ctx context.Context, email, addr, userID, reason string) {
	if err := e.throttle.RecordFailure(ctx, email, addr, time.Now()); err != nil {
		log.Print("authgate: login failure tracking failed")
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, EventLoginFailure, false, userID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"email":  email,
			"reason": reason,
		}
	})
}

/*
====================================
VERIFY / LOGOUT
====================================
*/

// VerifyAccess checks an access token and resolves the caller's identity.
// It is a pure token verification: no store round trips, and a session
// revoked after issuance does not retract tokens already in flight. Failed
// verification returns the guest principal alongside the error.
func (e *Engine) VerifyAccess(ctx context.Context, token string) (Principal, error) {
	if e == nil || e.jwtManager == nil {
		return GuestPrincipal, ErrEngineNotReady
	}
	if token == "" {
		return GuestPrincipal, ErrTokenInvalid
	}

	start := time.Now()
	claims, err := e.jwtManager.ParseAccess(token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}
	if err != nil {
		return GuestPrincipal, mapTokenErr(err)
	}

	return Principal{
		Kind:    Authenticated,
		UserID:  claims.Subject,
		Role:    claims.Role,
		TokenID: claims.ID,
	}, nil
}

// Logout ends the caller's authenticated state: the stored refresh token is
// cleared (so the pair can never be refreshed again) and the session the
// access token belongs to is revoked. The access token itself stays
// formally valid until it expires; clients are expected to discard it.
func (e *Engine) Logout(ctx context.Context, accessToken string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return mapTokenErr(err)
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.vault.Clear(sctx, claims.Subject); err != nil {
		return mapBackendErr(err)
	}
	if err := e.credentials.UpdateRefreshToken(sctx, claims.Subject, ""); err != nil {
		log.Print("authgate: refresh token mirror clear failed")
	}

	sessionID := ""
	if sess, err := e.sessions.RevokeByToken(sctx, claims.ID, "user logout", time.Now()); err == nil {
		sessionID = sess.ID
	} else if !errors.Is(err, redis.Nil) {
		log.Print("authgate: session revoke on logout failed")
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, EventLogout, true, claims.Subject, sessionID, nil, nil)

	return nil
}
