package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningMethod selects the signature algorithm for every token the manager
// produces.
type SigningMethod string

const (
	MethodHS256   SigningMethod = "hs256"
	MethodEd25519 SigningMethod = "ed25519"
)

// Token-use discriminators. Every token carries one, and each parser accepts
// only its own: a refresh token presented where an access token is expected
// fails verification outright instead of sneaking through with empty claims.
const (
	useAccess  = "access"
	useRefresh = "refresh"
	useReset   = "reset"
)

var (
	// ErrExpired is returned when a token verified but its window passed.
	ErrExpired = errors.New("token expired")
	// ErrInvalid covers every other parse failure: bad signature, wrong
	// algorithm, wrong use, malformed claims.
	ErrInvalid = errors.New("token invalid")
)

// Config carries the signing material and per-kind lifetimes.
type Config struct {
	SigningMethod SigningMethod
	Secret        []byte // hs256
	PrivateKey    []byte // ed25519 private key (raw or PEM)
	PublicKey     []byte // ed25519 public key (raw or PEM)

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	ResetTTL   time.Duration

	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Manager signs and verifies the three token kinds the engine deals in:
// short-lived access tokens, long-lived rotating refresh tokens, and
// password-reset tokens. It is immutable and safe for concurrent use.
type Manager struct {
	config Config
}

// AccessClaims are the verified contents of an access token. Subject is the
// user ID; ID (jti) individually identifies this token for audit trails.
type AccessClaims struct {
	Role string `json:"role"`
	Use  string `json:"use"`
	jwt.RegisteredClaims
}

// RefreshClaims are the verified contents of a refresh token. SessionID
// binds the token to the device session it keeps alive.
type RefreshClaims struct {
	SessionID string `json:"sid"`
	Use       string `json:"use"`
	jwt.RegisteredClaims
}

// ResetClaims are the verified contents of a password-reset token.
type ResetClaims struct {
	Use string `json:"use"`
	jwt.RegisteredClaims
}

// NewManager validates the config and returns a ready manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.ResetTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.Secret) == 0 {
			return nil, errors.New("hs256 requires secret")
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) == 0 {
			return nil, errors.New("ed25519 requires private key")
		}
		if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
			return nil, err
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	return &Manager{config: cfg}, nil
}

// AccessTTL reports the configured access-token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL reports the configured refresh-token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

// ResetTTL reports the configured reset-token lifetime.
func (j *Manager) ResetTTL() time.Duration { return j.config.ResetTTL }

// CreateAccess signs an access token for the subject. jti must be unique per
// token; the engine uses it as the session token.
func (j *Manager) CreateAccess(userID, role, jti string) (string, error) {
	claims := AccessClaims{
		Role:             role,
		Use:              useAccess,
		RegisteredClaims: j.registered(userID, jti, j.config.AccessTTL),
	}
	return j.sign(claims)
}

// ParseAccess verifies an access token and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Use != useAccess {
		return nil, ErrInvalid
	}
	return claims, nil
}

// CreateRefresh signs a refresh token bound to a session.
func (j *Manager) CreateRefresh(userID, sessionID, jti string) (string, error) {
	claims := RefreshClaims{
		SessionID:        sessionID,
		Use:              useRefresh,
		RegisteredClaims: j.registered(userID, jti, j.config.RefreshTTL),
	}
	return j.sign(claims)
}

// ParseRefresh verifies a refresh token and returns its claims. The caller
// still has to match the token against the stored rotation state; a valid
// signature alone proves nothing about whether this copy is the live one.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Use != useRefresh || claims.SessionID == "" {
		return nil, ErrInvalid
	}
	return claims, nil
}

// CreateReset signs a password-reset token for the subject.
func (j *Manager) CreateReset(userID, jti string) (string, error) {
	claims := ResetClaims{
		Use:              useReset,
		RegisteredClaims: j.registered(userID, jti, j.config.ResetTTL),
	}
	return j.sign(claims)
}

// ParseReset verifies a reset token and returns its claims.
func (j *Manager) ParseReset(tokenStr string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.Use != useReset {
		return nil, ErrInvalid
	}
	return claims, nil
}

func (j *Manager) registered(subject, jti string, ttl time.Duration) jwt.RegisteredClaims {
	now := time.Now()
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        jti,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    j.config.Issuer,
	}
	if j.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	return rc
}

func (j *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(j.method(), claims)
	key, err := j.signKey()
	if err != nil {
		return "", err
	}
	return token.SignedString(key)
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{j.method().Alg()}),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != j.method().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return j.verifyKey()
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpired
		}
		return ErrInvalid
	}
	if !token.Valid {
		return ErrInvalid
	}
	return nil
}

func (j *Manager) method() jwt.SigningMethod {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return jwt.SigningMethodEdDSA
	default:
		return jwt.SigningMethodHS256
	}
}

func (j *Manager) signKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPrivateKey(j.config.PrivateKey)
	default:
		return j.config.Secret, nil
	}
}

func (j *Manager) verifyKey() (interface{}, error) {
	switch j.config.SigningMethod {
	case MethodEd25519:
		return parseEdPublicKey(j.config.PublicKey)
	default:
		return j.config.Secret, nil
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
