//go:build integration
// +build integration

package test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate"
)

// newIntegrationEngine builds an engine on miniredis with an in-memory
// credential store and a recording mail service. Argon2 runs at the
// validation floor so password work does not dominate test time.
func newIntegrationEngine(t *testing.T) (*authgate.Engine, *memCredentials, *mailRecorder) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := authgate.DefaultConfig()
	cfg.JWT.Secret = []byte("integration-test-secret-0123456789ab")
	cfg.Password.Memory = 8192
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1

	creds := newMemCredentials()
	mail := &mailRecorder{}

	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithCredentialStore(creds).
		WithMailService(mail).
		Build()
	if err != nil {
		t.Fatalf("engine build failed: %v", err)
	}

	t.Cleanup(func() {
		engine.Close()
		_ = rdb.Close()
		mr.Close()
	})

	return engine, creds, mail
}

// registerVerified registers an account and completes email verification,
// returning the user ID.
func registerVerified(t *testing.T, engine *authgate.Engine, email, pass string) string {
	t.Helper()

	result, err := engine.Register(context.Background(), authgate.RegisterRequest{
		Email:    email,
		Password: pass,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := engine.RedeemVerificationLink(context.Background(), result.LinkToken); err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	return result.UserID
}

// mailRecorder is a MailService that captures the last artifacts per address.
type mailRecorder struct {
	mu sync.Mutex

	verifications int
	resets        int
	lastLink      string
	lastOTP       string
	lastReset     string
}

func (m *mailRecorder) SendVerificationEmail(_ context.Context, email, link, otp string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications++
	m.lastLink = link
	m.lastOTP = otp
	return nil
}

func (m *mailRecorder) SendPasswordResetEmail(_ context.Context, email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.lastReset = token
	return nil
}

func (m *mailRecorder) snapshot() (verifications, resets int, link, otp, reset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.verifications, m.resets, m.lastLink, m.lastOTP, m.lastReset
}

// memCredentials is an in-memory CredentialStore.
type memCredentials struct {
	mu      sync.RWMutex
	byID    map[string]authgate.Credential
	byEmail map[string]string
}

func newMemCredentials() *memCredentials {
	return &memCredentials{
		byID:    make(map[string]authgate.Credential),
		byEmail: make(map[string]string),
	}
}

func (m *memCredentials) FindByEmail(_ context.Context, email string) (*authgate.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authgate.ErrNotFound
	}
	cred := m.byID[id]
	return &cred, nil
}

func (m *memCredentials) FindByID(_ context.Context, id string) (*authgate.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cred, ok := m.byID[id]
	if !ok {
		return nil, authgate.ErrNotFound
	}
	return &cred, nil
}

func (m *memCredentials) Create(_ context.Context, cred *authgate.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(cred.Email)
	if _, exists := m.byEmail[key]; exists {
		return authgate.ErrAccountExists
	}
	m.byID[cred.ID] = *cred
	m.byEmail[key] = cred.ID
	return nil
}

func (m *memCredentials) UpdateRefreshToken(_ context.Context, userID, tokenHash string) error {
	return m.update(userID, func(c *authgate.Credential) { c.RefreshToken = tokenHash })
}

func (m *memCredentials) SetResetToken(_ context.Context, userID, tokenHash string) error {
	return m.update(userID, func(c *authgate.Credential) { c.ResetToken = tokenHash })
}

func (m *memCredentials) ResetPassword(_ context.Context, userID, passwordHash string) error {
	return m.update(userID, func(c *authgate.Credential) {
		c.PasswordHash = passwordHash
		c.ResetToken = ""
	})
}

func (m *memCredentials) VerifyEmail(_ context.Context, userID string) error {
	return m.update(userID, func(c *authgate.Credential) {
		c.EmailVerified = true
		if c.Status == authgate.AccountPending {
			c.Status = authgate.AccountActive
		}
	})
}

func (m *memCredentials) UpdateLastLogin(_ context.Context, userID string, at time.Time) error {
	return m.update(userID, func(c *authgate.Credential) { c.LastLoginAt = at })
}

func (m *memCredentials) get(userID string) (authgate.Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred, ok := m.byID[userID]
	return cred, ok
}

func (m *memCredentials) update(userID string, fn func(*authgate.Credential)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cred, ok := m.byID[userID]
	if !ok {
		return authgate.ErrNotFound
	}
	fn(&cred)
	m.byID[userID] = cred
	return nil
}
