package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every backend failure this store can surface.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is the session registry. One record per authenticated device, a
// per-user index set for listing, and a token index so a session can be
// addressed by the jti of its current access token.
//
// Keys: <prefix>:ss:<id> record, <prefix>:su:<userID> index set,
// <prefix>:st:<token> token index.
type Store struct {
	redis  *redis.Client
	prefix string
}

// NewStore returns a registry rooted at the given key prefix.
func NewStore(client *redis.Client, prefix string) *Store {
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) sessionKey(id string) string {
	return s.prefix + ":ss:" + id
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":su:" + userID
}

func (s *Store) tokenKey(token string) string {
	return s.prefix + ":st:" + token
}

// Create persists a new session record and its indexes. The record, the
// user index and the token index share the session TTL.
func (s *Store) Create(ctx context.Context, sess *Session, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: non-positive session ttl", ErrRedisUnavailable)
	}

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), sess, ttl)
		pipe.SAdd(ctx, s.userKey(sess.UserID), sess.ID)
		// Sessions share one configured lifetime, so the latest create always
		// carries the furthest deadline.
		pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
		pipe.Set(ctx, s.tokenKey(sess.Token), sess.ID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads a session by ID. Missing and naturally-expired records both
// come back as redis.Nil; an expired record is pruned on the way out.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess := &Session{}
	if err := sess.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("%w: corrupt session record: %v", ErrRedisUnavailable, err)
	}

	if time.Now().Unix() >= sess.ExpiresAt {
		_ = s.prune(ctx, sess)
		return nil, redis.Nil
	}

	return sess, nil
}

// GetByToken resolves the token index and loads the session.
func (s *Store) GetByToken(ctx context.Context, token string) (*Session, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.Get(ctx, id)
}

// ListForUser returns the user's session records, newest first. Index
// entries whose record is gone are pruned from the set as a side effect.
func (s *Store) ListForUser(ctx context.Context, userID string) ([]*Session, error) {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, s.sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	now := time.Now().Unix()
	sessions := make([]*Session, 0, len(ids))
	var stale []interface{}
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				stale = append(stale, ids[i])
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}

		sess := &Session{}
		if err := sess.UnmarshalBinary(data); err != nil {
			stale = append(stale, ids[i])
			continue
		}
		if now >= sess.ExpiresAt {
			stale = append(stale, ids[i])
			continue
		}
		sessions = append(sessions, sess)
	}

	if len(stale) > 0 {
		_ = s.redis.SRem(ctx, s.userKey(userID), stale...).Err()
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt > sessions[j].CreatedAt
	})

	return sessions, nil
}

// Touch records activity on a session: LastActivity moves to at, and the
// token index is re-pointed from the previous access token to newToken.
// Revoked sessions are left alone; the status is terminal.
func (s *Store) Touch(ctx context.Context, id, newToken string, at time.Time) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status != StatusActive {
		return redis.Nil
	}

	oldToken := sess.Token
	sess.Token = newToken
	sess.LastActivity = at.Unix()

	remaining := time.Until(time.Unix(sess.ExpiresAt, 0))
	if remaining <= 0 {
		return redis.Nil
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(id), sess, redis.KeepTTL)
		if oldToken != "" && oldToken != newToken {
			pipe.Del(ctx, s.tokenKey(oldToken))
		}
		pipe.Set(ctx, s.tokenKey(newToken), id, remaining)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Revoke moves a session to StatusRevoked. The record stays readable until
// its natural expiry so listings can show what was revoked and why; the
// token index entry is dropped immediately. Revoking a session that is
// already revoked is a no-op.
func (s *Store) Revoke(ctx context.Context, id, reason string, at time.Time) error {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status == StatusRevoked {
		return nil
	}

	token := sess.Token
	sess.Status = StatusRevoked
	sess.RevokeReason = reason
	sess.LastActivity = at.Unix()

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(id), sess, redis.KeepTTL)
		if token != "" {
			pipe.Del(ctx, s.tokenKey(token))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// RevokeByToken resolves the token index and revokes the session it points
// at, returning the revoked record.
func (s *Store) RevokeByToken(ctx context.Context, token, reason string, at time.Time) (*Session, error) {
	id, err := s.redis.Get(ctx, s.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.Revoke(ctx, id, reason, at); err != nil {
		return nil, err
	}
	sess.Status = StatusRevoked
	sess.RevokeReason = reason
	return sess, nil
}

// RevokeAllForUser revokes every active session of a user and reports how
// many flipped.
//
// ATOMICITY NOTE: this reads the index set, then writes the revocations. A
// session created between the two phases is not captured. The registry makes
// no ordering promise between revoke-all and an in-flight login beyond
// eventual convergence, so the stray session is left to the next call or its
// natural expiry.
func (s *Store) RevokeAllForUser(ctx context.Context, userID, reason string, at time.Time) (int, error) {
	sessions, err := s.ListForUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	revoked := 0
	for _, sess := range sessions {
		if sess.Status != StatusActive {
			continue
		}
		if err := s.Revoke(ctx, sess.ID, reason, at); err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return revoked, err
		}
		revoked++
	}

	return revoked, nil
}

// Ping round-trips the backend and reports the latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) prune(ctx context.Context, sess *Session) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sess.ID))
		pipe.SRem(ctx, s.userKey(sess.UserID), sess.ID)
		if sess.Token != "" {
			pipe.Del(ctx, s.tokenKey(sess.Token))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
