package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshHashMismatch is returned by RotateRefreshHash when the presented
// secret hash does not match the stored one. Callers treat this as refresh
// token reuse.
var ErrRefreshHashMismatch = errors.New("refresh hash mismatch")

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrSessionExpired is returned when the record exists but its expiry has
// passed. The record is deleted as a side effect.
var ErrSessionExpired = errors.New("session expired")

// Store persists sessions under prefix:sess:<id> with a per-user index set
// under prefix:user:<uid> so all of a user's sessions can be destroyed at
// once.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a session [Store] with the given key prefix.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "hw"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

func (s *Store) sessionKey(sessionID string) string {
	return s.prefix + ":sess:" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":user:" + userID
}

// Save writes the session and indexes it under its user.
func (s *Store) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	encoded, err := encodeSession(sess)
	if err != nil {
		return err
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.sessionKey(sess.SessionID), encoded, ttl)
	pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
	pipe.Expire(ctx, s.userKey(sess.UserID), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return nil
}

// Get loads a session. Expired records are deleted and reported as
// redis.Nil-equivalent misses via [ErrSessionExpired].
func (s *Store) Get(ctx context.Context, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := decodeSession(data)
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() > sess.ExpiresAt {
		_ = s.Delete(ctx, sess.UserID, sessionID)
		return nil, ErrSessionExpired
	}

	return sess, nil
}

// Delete removes a session and its user-index entry. Deleting a missing
// session is not an error.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, s.sessionKey(sessionID))
	if userID != "" {
		pipe.SRem(ctx, s.userKey(userID), sessionID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUser destroys every session indexed under the user.
func (s *Store) DeleteAllForUser(ctx context.Context, userID string) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.sessionKey(id))
	}
	keys = append(keys, s.userKey(userID))

	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAllForUserExcept destroys every session of the user except the named
// one. Used after a password change so the changing session survives.
func (s *Store) DeleteAllForUserExcept(ctx context.Context, userID, keepSessionID string) error {
	ids, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var keys []string
	for _, id := range ids {
		if id == keepSessionID {
			continue
		}
		keys = append(keys, s.sessionKey(id))
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, keys...)
	for _, id := range ids {
		if id != keepSessionID {
			pipe.SRem(ctx, s.userKey(userID), id)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// RotateRefreshHash atomically swaps the stored refresh hash if and only if
// the presented hash matches the current one. The optimistic WATCH loop
// retries on concurrent writers; a hash mismatch means the presented refresh
// secret was already rotated away and is surfaced as reuse.
func (s *Store) RotateRefreshHash(ctx context.Context, sessionID string, presented, next [32]byte) (*Session, error) {
	const maxRetries = 4
	key := s.sessionKey(sessionID)

	for i := 0; i < maxRetries; i++ {
		var rotated *Session

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			sess, err := decodeSession(data)
			if err != nil {
				return err
			}

			now := time.Now()
			if now.Unix() > sess.ExpiresAt {
				_, _ = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return ErrSessionExpired
			}

			if subtle.ConstantTimeCompare(sess.RefreshHash[:], presented[:]) != 1 {
				return ErrRefreshHashMismatch
			}

			sess.RefreshHash = next
			encoded, err := encodeSession(sess)
			if err != nil {
				return err
			}

			remaining := time.Until(time.Unix(sess.ExpiresAt, 0))
			if remaining < time.Second {
				remaining = time.Second
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, remaining)
				return nil
			})
			if err != nil {
				return err
			}

			rotated = sess
			return nil
		}, key)

		switch {
		case err == nil:
			return rotated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: rotate retries exhausted", ErrRedisUnavailable)
}
