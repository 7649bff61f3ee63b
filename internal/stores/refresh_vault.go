package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRedisUnavailable wraps backend failures across this package.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrRefreshEmpty means the user has no refresh token on record.
	ErrRefreshEmpty = errors.New("no refresh token on record")
	// ErrRefreshMismatch means the presented token is not the stored one:
	// either it was already rotated away or it never belonged here.
	ErrRefreshMismatch = errors.New("refresh token mismatch")
)

const (
	rotateStatusEmpty    int64 = 0
	rotateStatusMismatch int64 = 1
	rotateStatusRotated  int64 = 2
)

// rotateRefreshScript compares the stored hash against the presented one
// and swaps in the next hash only on an exact match. Running it as a script
// makes the compare-and-swap atomic, so concurrent rotations with the same
// token produce exactly one winner.
//
// KEYS[1] = vault key, ARGV[1] = presented hash, ARGV[2] = next hash,
// ARGV[3] = ttl in milliseconds.
const rotateRefreshScript = `
local current = redis.call('GET', KEYS[1])
if not current then
  return 0
end
if current ~= ARGV[1] then
  return 1
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 2
`

var rotateRefreshLua = redis.NewScript(rotateRefreshScript)

// RefreshVault stores the hash of each user's current refresh token: one
// value per user, overwritten on login, swapped on rotation, deleted on
// logout. A presented token is only honored while its hash is the stored
// one, which is what makes a replayed token detectable.
//
// Key: <prefix>:rt:<userID>.
type RefreshVault struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRefreshVault returns a vault rooted at the given key prefix.
func NewRefreshVault(redisClient redis.UniversalClient, prefix string) *RefreshVault {
	return &RefreshVault{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (v *RefreshVault) key(userID string) string {
	return v.prefix + ":rt:" + userID
}

// Put unconditionally installs a new hash. Used at login, where issuing a
// fresh refresh token displaces whatever the user held before.
func (v *RefreshVault) Put(ctx context.Context, userID, hash string, ttl time.Duration) error {
	if err := v.redis.Set(ctx, v.key(userID), hash, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Rotate atomically replaces currentHash with nextHash. The stored value
// must equal currentHash exactly; under concurrent calls with the same
// token, exactly one caller rotates and the rest get ErrRefreshMismatch.
// The new hash starts a full TTL, matching the fresh expiry of the token
// it represents.
func (v *RefreshVault) Rotate(ctx context.Context, userID, currentHash, nextHash string, ttl time.Duration) error {
	result, err := rotateRefreshLua.Run(
		ctx,
		v.redis,
		[]string{v.key(userID)},
		currentHash,
		nextHash,
		ttl.Milliseconds(),
	).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return fmt.Errorf("%w: invalid rotate script response", ErrRedisUnavailable)
	}

	switch code {
	case rotateStatusEmpty:
		return ErrRefreshEmpty
	case rotateStatusMismatch:
		return ErrRefreshMismatch
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unknown rotate script status %d", ErrRedisUnavailable, code)
	}
}

// Clear removes the stored hash. Logout and password reset both end here;
// clearing an already-empty vault is fine.
func (v *RefreshVault) Clear(ctx context.Context, userID string) error {
	if err := v.redis.Del(ctx, v.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
