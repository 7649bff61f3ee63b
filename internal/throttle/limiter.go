package throttle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend failure this limiter can surface.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Config holds the sliding-window tuning parameters.
type Config struct {
	Window      time.Duration
	MaxAttempts int
}

// Decision is the outcome of a throttle check. RetryAfter is only set when
// the check denies: it is the time until the oldest counted attempt slides
// out of the window.
type Decision struct {
	Allowed    bool
	Attempts   int
	RetryAfter time.Duration
}

// Limiter throttles login attempts over a sliding window, tracked
// independently per email and per client address. Attempts live in sorted
// sets scored by their timestamp; a check prunes everything older than the
// window before counting, so the window slides instead of resetting.
//
// Keys: <prefix>:la:e:<email> and <prefix>:la:a:<addr>.
type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

// New creates a sliding-window [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		prefix: prefix,
		config: cfg,
	}
}

func (l *Limiter) emailKey(email string) string {
	return l.prefix + ":la:e:" + email
}

func (l *Limiter) addrKey(addr string) string {
	return l.prefix + ":la:a:" + addr
}

// Check reports whether a login attempt for the email/address pair may
// proceed. Either dimension at its budget denies the pair. Empty dimensions
// are skipped, and backend failures allow the attempt: the throttle fails
// open rather than locking everyone out with it.
func (l *Limiter) Check(ctx context.Context, email, addr string) (Decision, error) {
	now := time.Now()
	decision := Decision{Allowed: true}

	for _, key := range l.keysFor(email, addr) {
		count, oldest, err := l.inspect(ctx, key, now)
		if err != nil {
			return Decision{Allowed: true}, err
		}
		if int(count) > decision.Attempts {
			decision.Attempts = int(count)
		}
		if int(count) < l.config.MaxAttempts {
			continue
		}

		decision.Allowed = false
		// The caller can retry once the oldest attempt in the denying
		// dimension slides out. When both dimensions deny, the later of the
		// two hints wins.
		if retry := oldest.Add(l.config.Window).Sub(now); retry > decision.RetryAfter {
			decision.RetryAfter = retry
		}
	}

	return decision, nil
}

// RecordFailure counts a failed authentication attempt against both
// dimensions at the given instant.
func (l *Limiter) RecordFailure(ctx context.Context, email, addr string, at time.Time) error {
	member := uuid.NewString()
	score := float64(at.UnixMilli())

	for _, key := range l.keysFor(email, addr) {
		_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: member})
			// Abandoned keys age out one window after their last failure.
			pipe.Expire(ctx, key, l.config.Window)
			return nil
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return nil
}

// ClearOnSuccess forgets the recorded failures for both dimensions. Called
// after a successful authentication.
func (l *Limiter) ClearOnSuccess(ctx context.Context, email, addr string) error {
	keys := l.keysFor(email, addr)
	if len(keys) == 0 {
		return nil
	}
	if err := l.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the in-window failure count for an email. Missing keys
// count as zero and do not reveal account existence.
func (l *Limiter) Attempts(ctx context.Context, email string) (int, error) {
	if email == "" {
		return 0, nil
	}
	count, _, err := l.inspect(ctx, l.emailKey(email), time.Now())
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (l *Limiter) keysFor(email, addr string) []string {
	keys := make([]string, 0, 2)
	if email != "" {
		keys = append(keys, l.emailKey(email))
	}
	if addr != "" {
		keys = append(keys, l.addrKey(addr))
	}
	return keys
}

// inspect prunes attempts older than the window, then returns the surviving
// count and the timestamp of the oldest survivor.
func (l *Limiter) inspect(ctx context.Context, key string, now time.Time) (int64, time.Time, error) {
	cutoff := now.Add(-l.config.Window).UnixMilli()

	pipe := l.redis.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff))
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count := card.Val()
	var oldestAt time.Time
	if entries := oldest.Val(); len(entries) > 0 {
		oldestAt = time.UnixMilli(int64(entries[0].Score))
	}

	return count, oldestAt, nil
}
