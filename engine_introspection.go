package authgate

import (
	"context"
	"time"
)

// HealthStatus is an on-demand backend health result.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// Health pings the session store's Redis backend. Credential store health is
// the consumer's concern; this covers the half the engine owns.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.sessions == nil {
		return HealthStatus{}
	}

	latency, err := e.sessions.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// LoginAttempts reports the in-window failure count recorded against an
// email. Operators use it to answer "why is this user locked out" without
// reading Redis by hand.
func (e *Engine) LoginAttempts(ctx context.Context, email string) (int, error) {
	if e == nil || e.throttle == nil {
		return 0, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return 0, nil
	}

	n, err := e.throttle.Attempts(ctx, email)
	if err != nil {
		return 0, mapBackendErr(err)
	}
	return n, nil
}
