package havenwatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/havenwatch/havenwatch/internal"
)

func saveChallenge(t *testing.T, store *challengeStore, kind challengeKind) (string, [32]byte) {
	t.Helper()

	id, err := internal.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	secret, err := internal.NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}

	record := &challengeRecord{
		UserID:     "user-001",
		SecretHash: internal.HashSecret(secret),
		Kind:       kind,
		ExpiresAt:  time.Now().Add(time.Hour).Unix(),
	}
	if err := store.Save(context.Background(), id.String(), record, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}
	return id.String(), internal.HashSecret(secret)
}

func TestChallengeConsumeDeletes(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "hw")
	ctx := context.Background()

	id, hash := saveChallenge(t, store, challengePasswordReset)

	record, err := store.Consume(ctx, challengePasswordReset, id, hash, 5)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.UserID != "user-001" {
		t.Fatalf("user id = %q", record.UserID)
	}

	if _, err := store.Consume(ctx, challengePasswordReset, id, hash, 5); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("second consume err = %v, want not found", err)
	}
}

func TestChallengeKindsDoNotCross(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "hw")

	id, hash := saveChallenge(t, store, challengeEmailConfirm)

	_, err := store.Consume(context.Background(), challengePasswordReset, id, hash, 5)
	if !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestChallengeAttemptExhaustion(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "hw")
	ctx := context.Background()

	id, hash := saveChallenge(t, store, challengePasswordReset)
	var wrong [32]byte

	// Two mismatches survive with the counter bumped, the third burns the record.
	for i := 0; i < 2; i++ {
		if _, err := store.Consume(ctx, challengePasswordReset, id, wrong, 3); !errors.Is(err, errChallengeMismatch) {
			t.Fatalf("attempt %d err = %v, want mismatch", i+1, err)
		}
	}
	if _, err := store.Consume(ctx, challengePasswordReset, id, wrong, 3); !errors.Is(err, errChallengeExhausted) {
		t.Fatalf("err = %v, want exhausted", err)
	}

	// Even the right secret is useless once the record is gone.
	if _, err := store.Consume(ctx, challengePasswordReset, id, hash, 3); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestChallengeExpired(t *testing.T) {
	store := newChallengeStore(newTestRedis(t), "hw")
	ctx := context.Background()

	id, err := internal.NewID()
	if err != nil {
		t.Fatalf("new id: %v", err)
	}
	secret, err := internal.NewSecret()
	if err != nil {
		t.Fatalf("new secret: %v", err)
	}

	record := &challengeRecord{
		UserID:     "user-001",
		SecretHash: internal.HashSecret(secret),
		Kind:       challengePasswordReset,
		ExpiresAt:  time.Now().Add(-time.Minute).Unix(),
	}
	if err := store.Save(ctx, id.String(), record, time.Hour); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.Consume(ctx, challengePasswordReset, id.String(), internal.HashSecret(secret), 5); !errors.Is(err, errChallengeNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
}
