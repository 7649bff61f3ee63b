package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pending is a not-yet-redeemed email verification, stored as a JSON
// document under the link's token hash or the OTP code.
type Pending struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	IssuedAt int64  `json:"issued_at"`
}

// VerificationStore keeps the two redeemable artifacts of an email
// verification: the link token (addressed by its SHA-256, so the plaintext
// token never touches Redis) and the OTP code (addressed by the code itself,
// which is what a redeem request carries). Links and codes expire on their
// own TTLs and are consumed with GETDEL, which is what makes each one
// single-use.
//
// Keys: <prefix>:vl:<tokenHash> and <prefix>:vo:<code>.
type VerificationStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewVerificationStore returns a store rooted at the given key prefix.
func NewVerificationStore(redisClient redis.UniversalClient, prefix string) *VerificationStore {
	return &VerificationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *VerificationStore) linkKey(tokenHash string) string {
	return s.prefix + ":vl:" + tokenHash
}

func (s *VerificationStore) otpKey(code string) string {
	return s.prefix + ":vo:" + code
}

// SaveLink records a pending link verification. A resend saves a new record
// without touching earlier ones, so every outstanding link stays valid
// until redeemed or expired. Hash collisions are not a concern at 256 bits,
// so this is an unconditional SET.
func (s *VerificationStore) SaveLink(ctx context.Context, tokenHash string, rec Pending, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: encode verification record: %v", ErrRedisUnavailable, err)
	}
	if err := s.redis.Set(ctx, s.linkKey(tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeLink redeems a link verification. Absent, expired and
// already-consumed records are indistinguishable: all come back redis.Nil.
func (s *VerificationStore) ConsumeLink(ctx context.Context, tokenHash string) (Pending, error) {
	return s.consume(ctx, s.linkKey(tokenHash))
}

// SaveOTP records a pending OTP verification. It reports false without
// writing when the code is already held by some pending record; six digits
// is a small space, and silently overwriting another user's live code would
// let one registration revoke another's. Callers draw a fresh code and try
// again.
func (s *VerificationStore) SaveOTP(ctx context.Context, code string, rec Pending, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("%w: encode verification record: %v", ErrRedisUnavailable, err)
	}
	stored, err := s.redis.SetNX(ctx, s.otpKey(code), data, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return stored, nil
}

// ConsumeOTP redeems an OTP verification.
func (s *VerificationStore) ConsumeOTP(ctx context.Context, code string) (Pending, error) {
	return s.consume(ctx, s.otpKey(code))
}

// consume is a single GETDEL round trip: whoever gets the record deletes it
// in the same step, so two racing redeems cannot both succeed.
func (s *VerificationStore) consume(ctx context.Context, key string) (Pending, error) {
	data, err := s.redis.GetDel(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Pending{}, err
		}
		return Pending{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var rec Pending
	if err := json.Unmarshal(data, &rec); err != nil {
		return Pending{}, fmt.Errorf("%w: corrupt verification record: %v", ErrRedisUnavailable, err)
	}
	return rec, nil
}
