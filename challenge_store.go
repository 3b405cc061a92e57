package havenwatch

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// challengeKind separates the two challenge flavors sharing one store.
type challengeKind uint8

const (
	challengePasswordReset challengeKind = iota + 1
	challengeEmailConfirm
)

var (
	errChallengeNotFound    = errors.New("challenge record not found")
	errChallengeMismatch    = errors.New("challenge secret mismatch")
	errChallengeExhausted   = errors.New("challenge attempts exhausted")
	errChallengeUnavailable = errors.New("challenge store unavailable")
)

// challengeRecord is a single-use secret bound to a user: a password-reset
// token or an email-confirmation token. Only the SHA-256 of the secret is
// stored.
type challengeRecord struct {
	UserID     string
	SecretHash [32]byte
	Kind       challengeKind
	ExpiresAt  int64
	Attempts   uint16
}

type challengeWire struct {
	V          int    `json:"v"`
	UserID     string `json:"uid"`
	SecretHash string `json:"sh"`
	Kind       uint8  `json:"k"`
	ExpiresAt  int64  `json:"eat"`
	Attempts   uint16 `json:"att"`
}

type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newChallengeStore(redisClient redis.UniversalClient, prefix string) *challengeStore {
	if prefix == "" {
		prefix = "hw"
	}
	return &challengeStore{redis: redisClient, prefix: prefix}
}

func (s *challengeStore) key(kind challengeKind, challengeID string) string {
	switch kind {
	case challengeEmailConfirm:
		return s.prefix + ":confirm:" + challengeID
	default:
		return s.prefix + ":reset:" + challengeID
	}
}

func (s *challengeStore) Save(ctx context.Context, challengeID string, record *challengeRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(challengeWire{
		V:          1,
		UserID:     record.UserID,
		SecretHash: base64.RawStdEncoding.EncodeToString(record.SecretHash[:]),
		Kind:       uint8(record.Kind),
		ExpiresAt:  record.ExpiresAt,
		Attempts:   record.Attempts,
	})
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(record.Kind, challengeID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errChallengeUnavailable, err)
	}

	return nil
}

// Consume verifies the presented secret hash against the stored record.
// A match deletes the record and returns it; a mismatch burns an attempt and
// deletes the record once maxAttempts is reached. The WATCH loop keeps the
// attempt counter honest under concurrent confirm calls.
func (s *challengeStore) Consume(ctx context.Context, kind challengeKind, challengeID string, presented [32]byte, maxAttempts int) (*challengeRecord, error) {
	const maxRetries = 4
	key := s.key(kind, challengeID)

	for i := 0; i < maxRetries; i++ {
		var matched *challengeRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return errChallengeNotFound
				}
				return fmt.Errorf("%w: %v", errChallengeUnavailable, err)
			}

			record, err := decodeChallenge(data)
			if err != nil {
				return err
			}
			if record.Kind != kind {
				return errChallengeNotFound
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, _ = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return errChallengeNotFound
			}

			if subtle.ConstantTimeCompare(record.SecretHash[:], presented[:]) != 1 {
				record.Attempts++
				if int(record.Attempts) >= maxAttempts {
					_, _ = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					return errChallengeExhausted
				}

				remaining := time.Until(time.Unix(record.ExpiresAt, 0))
				if remaining < time.Second {
					remaining = time.Second
				}
				encoded, encErr := encodeChallenge(record)
				if encErr != nil {
					return encErr
				}
				_, _ = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, encoded, remaining)
					return nil
				})
				return errChallengeMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return fmt.Errorf("%w: %v", errChallengeUnavailable, err)
			}

			matched = record
			return nil
		}, key)

		switch {
		case err == nil:
			return matched, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, err
		}
	}

	return nil, fmt.Errorf("%w: consume retries exhausted", errChallengeUnavailable)
}

func encodeChallenge(record *challengeRecord) ([]byte, error) {
	return json.Marshal(challengeWire{
		V:          1,
		UserID:     record.UserID,
		SecretHash: base64.RawStdEncoding.EncodeToString(record.SecretHash[:]),
		Kind:       uint8(record.Kind),
		ExpiresAt:  record.ExpiresAt,
		Attempts:   record.Attempts,
	})
}

func decodeChallenge(data []byte) (*challengeRecord, error) {
	var wire challengeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, errChallengeNotFound
	}
	hash, err := base64.RawStdEncoding.DecodeString(wire.SecretHash)
	if err != nil || len(hash) != 32 || wire.V != 1 {
		return nil, errChallengeNotFound
	}

	record := &challengeRecord{
		UserID:    wire.UserID,
		Kind:      challengeKind(wire.Kind),
		ExpiresAt: wire.ExpiresAt,
		Attempts:  wire.Attempts,
	}
	copy(record.SecretHash[:], hash)
	return record, nil
}
