package authgate

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sablehq/authgate/internal"
	"github.com/sablehq/authgate/internal/stores"
	"github.com/sablehq/authgate/internal/throttle"
	"github.com/sablehq/authgate/jwt"
	"github.com/sablehq/authgate/password"
	"github.com/sablehq/authgate/session"
)

// Builder assembles an [Engine]. Configure it fluently, then call Build
// once; a builder is not reusable and not safe for concurrent use.
type Builder struct {
	config Config
	redis  *redis.Client

	credentials CredentialStore
	mail        MailService
	auditSink   AuditSink

	built bool
}

// New returns a builder seeded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder's configuration. The config is cloned, so
// later mutations of cfg do not leak into the engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing sessions, the refresh vault, the
// verification store and the login throttle.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithCredentialStore sets the host application's credential persistence.
// Required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.credentials = store
	return b
}

// WithMailService sets the outbound mail delivery. Optional: without one
// the engine still runs every flow and returns the verification link, OTP
// and reset token to the caller, who delivers them however it likes.
func (b *Builder) WithMailService(mail MailService) *Builder {
	b.mail = mail
	return b
}

// WithAuditSink sets the destination for security events. Optional; nil
// with auditing enabled means events are dispatched to a [NoOpSink].
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the counter set.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the verification latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every component and returns the
// engine. The token lifetimes come out of the duration strings in
// [JWTConfig]; unparseable values fall back to their documented defaults
// rather than failing the build.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.credentials == nil {
		return nil, errors.New("credential store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	accessTTL := internal.ParseExpiry(cfg.JWT.AccessExpiry, defaultAccessTTL)
	refreshTTL := internal.ParseExpiry(cfg.JWT.RefreshExpiry, defaultRefreshTTL)
	resetTTL := internal.ParseExpiry(cfg.JWT.ResetExpiry, defaultResetTTL)

	jm, err := jwt.NewManager(jwt.Config{
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		Secret:        cloneBytes(cfg.JWT.Secret),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		ResetTTL:      resetTTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Session.RedisPrefix

	sessionLifetime := cfg.Session.Lifetime
	if sessionLifetime <= 0 {
		// A session exists to anchor a refresh token, so by default it
		// lives exactly as long as one.
		sessionLifetime = refreshTTL
	}

	engine := &Engine{
		config:        cfg,
		credentials:   b.credentials,
		mail:          b.mail,
		jwtManager:    jm,
		passwordHash:  ph,
		sessions:      session.NewStore(b.redis, prefix),
		vault:         stores.NewRefreshVault(b.redis, prefix),
		verifications: stores.NewVerificationStore(b.redis, prefix),
		throttle: throttle.New(b.redis, prefix, throttle.Config{
			Window:      cfg.Throttle.Window,
			MaxAttempts: cfg.Throttle.MaxAttempts,
		}),
		metrics:         NewMetrics(cfg.Metrics),
		audit:           newAuditDispatcher(cfg.Audit, b.auditSink),
		sessionLifetime: sessionLifetime,
	}

	b.built = true

	return engine, nil
}

// Default token lifetimes, applied when the configured duration string is
// missing or malformed.
const (
	defaultAccessTTL  = 7 * 24 * time.Hour
	defaultRefreshTTL = 30 * 24 * time.Hour
	defaultResetTTL   = time.Hour
)
