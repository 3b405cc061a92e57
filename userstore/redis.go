// Package userstore provides a Redis-backed implementation of the engine's
// user provider. Accounts live under prefix:acct:<id> with a lowercase email
// index under prefix:email:<email>.
package userstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/havenwatch/havenwatch"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps transport failures talking to Redis.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store is a Redis-backed [havenwatch.UserProvider].
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Store] with the given key prefix ("hw" when empty).
func New(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "hw"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

type accountWire struct {
	V            int               `json:"v"`
	UserID       string            `json:"uid"`
	Email        string            `json:"email"`
	PasswordHash string            `json:"ph"`
	Status       uint8             `json:"st"`
	Metadata     map[string]string `json:"meta,omitempty"`
	CreatedAt    int64             `json:"cat"`
}

func (s *Store) accountKey(userID string) string {
	return s.prefix + ":acct:" + userID
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":email:" + strings.ToLower(email)
}

// CreateUser registers an account. The email index is claimed first with
// SETNX, which is what makes duplicate detection atomic.
func (s *Store) CreateUser(ctx context.Context, input havenwatch.CreateUserInput) (havenwatch.UserRecord, error) {
	record := havenwatch.UserRecord{
		UserID:       uuid.NewString(),
		Email:        input.Email,
		PasswordHash: input.PasswordHash,
		Status:       input.Status,
		Metadata:     input.Metadata,
		CreatedAt:    time.Now().Unix(),
	}

	claimed, err := s.redis.SetNX(ctx, s.emailKey(input.Email), record.UserID, 0).Result()
	if err != nil {
		return havenwatch.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !claimed {
		return havenwatch.UserRecord{}, havenwatch.ErrEmailExists
	}

	if err := s.write(ctx, record); err != nil {
		// Roll the index claim back so the email is not burned.
		_ = s.redis.Del(ctx, s.emailKey(input.Email)).Err()
		return havenwatch.UserRecord{}, err
	}

	return record, nil
}

// GetUserByEmail resolves the email index and loads the account.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (havenwatch.UserRecord, error) {
	userID, err := s.redis.Get(ctx, s.emailKey(email)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return havenwatch.UserRecord{}, havenwatch.ErrUserNotFound
		}
		return havenwatch.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return s.GetUserByID(ctx, userID)
}

// GetUserByID loads an account record.
func (s *Store) GetUserByID(ctx context.Context, userID string) (havenwatch.UserRecord, error) {
	data, err := s.redis.Get(ctx, s.accountKey(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return havenwatch.UserRecord{}, havenwatch.ErrUserNotFound
		}
		return havenwatch.UserRecord{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return decodeAccount(data)
}

// UpdatePasswordHash replaces the stored credential hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	_, err := s.update(ctx, userID, func(record *havenwatch.UserRecord) {
		record.PasswordHash = newHash
	})
	return err
}

// UpdateMetadata replaces the account metadata.
func (s *Store) UpdateMetadata(ctx context.Context, userID string, metadata map[string]string) (havenwatch.UserRecord, error) {
	return s.update(ctx, userID, func(record *havenwatch.UserRecord) {
		record.Metadata = metadata
	})
}

// UpdateStatus moves the account to a new lifecycle state.
func (s *Store) UpdateStatus(ctx context.Context, userID string, status havenwatch.AccountStatus) (havenwatch.UserRecord, error) {
	return s.update(ctx, userID, func(record *havenwatch.UserRecord) {
		record.Status = status
	})
}

// update applies mutate under an optimistic WATCH so concurrent writers do
// not clobber each other.
func (s *Store) update(ctx context.Context, userID string, mutate func(*havenwatch.UserRecord)) (havenwatch.UserRecord, error) {
	const maxRetries = 4
	key := s.accountKey(userID)

	for i := 0; i < maxRetries; i++ {
		var updated havenwatch.UserRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return havenwatch.ErrUserNotFound
				}
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}

			record, err := decodeAccount(data)
			if err != nil {
				return err
			}

			mutate(&record)

			encoded, err := encodeAccount(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
			}

			updated = record
			return nil
		}, key)

		switch {
		case err == nil:
			return updated, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return havenwatch.UserRecord{}, err
		}
	}

	return havenwatch.UserRecord{}, fmt.Errorf("%w: update retries exhausted", ErrRedisUnavailable)
}

func (s *Store) write(ctx context.Context, record havenwatch.UserRecord) error {
	encoded, err := encodeAccount(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.accountKey(record.UserID), encoded, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func encodeAccount(record havenwatch.UserRecord) ([]byte, error) {
	return json.Marshal(accountWire{
		V:            1,
		UserID:       record.UserID,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		Status:       uint8(record.Status),
		Metadata:     record.Metadata,
		CreatedAt:    record.CreatedAt,
	})
}

func decodeAccount(data []byte) (havenwatch.UserRecord, error) {
	var wire accountWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return havenwatch.UserRecord{}, errors.New("corrupt account record")
	}
	if wire.V != 1 || wire.UserID == "" {
		return havenwatch.UserRecord{}, errors.New("corrupt account record")
	}

	return havenwatch.UserRecord{
		UserID:       wire.UserID,
		Email:        wire.Email,
		PasswordHash: wire.PasswordHash,
		Status:       havenwatch.AccountStatus(wire.Status),
		Metadata:     wire.Metadata,
		CreatedAt:    wire.CreatedAt,
	}, nil
}
