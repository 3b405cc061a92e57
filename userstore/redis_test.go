package userstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/havenwatch/havenwatch"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, "hw")
}

func createUser(t *testing.T, store *Store, email string) havenwatch.UserRecord {
	t.Helper()

	record, err := store.CreateUser(context.Background(), havenwatch.CreateUserInput{
		Email:        email,
		PasswordHash: "$argon2id$stub",
		Status:       havenwatch.AccountActive,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return record
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createUser(t, store, "alice@example.com")
	if created.UserID == "" {
		t.Fatal("expected a generated user ID")
	}

	byID, err := store.GetUserByID(ctx, created.UserID)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if byID.Email != "alice@example.com" {
		t.Fatalf("email = %q", byID.Email)
	}

	byEmail, err := store.GetUserByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if byEmail.UserID != created.UserID {
		t.Fatalf("user id = %q, want %q", byEmail.UserID, created.UserID)
	}
}

func TestEmailLookupIsCaseInsensitive(t *testing.T) {
	store := newTestStore(t)

	created := createUser(t, store, "Alice@Example.com")

	got, err := store.GetUserByEmail(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if got.UserID != created.UserID {
		t.Fatal("case-folded lookup missed the record")
	}
}

func TestCreateDuplicate(t *testing.T) {
	store := newTestStore(t)

	createUser(t, store, "alice@example.com")

	_, err := store.CreateUser(context.Background(), havenwatch.CreateUserInput{
		Email:        "ALICE@example.com",
		PasswordHash: "$argon2id$stub",
	})
	if !errors.Is(err, havenwatch.ErrEmailExists) {
		t.Fatalf("err = %v, want ErrEmailExists", err)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, havenwatch.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if _, err := store.GetUserByID(ctx, "missing"); !errors.Is(err, havenwatch.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUpdatePasswordHash(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createUser(t, store, "alice@example.com")

	if err := store.UpdatePasswordHash(ctx, created.UserID, "$argon2id$new"); err != nil {
		t.Fatalf("update hash: %v", err)
	}

	got, err := store.GetUserByID(ctx, created.UserID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.PasswordHash != "$argon2id$new" {
		t.Fatalf("hash = %q", got.PasswordHash)
	}

	if err := store.UpdatePasswordHash(ctx, "missing", "x"); !errors.Is(err, havenwatch.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

func TestUpdateStatusAndMetadata(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := createUser(t, store, "alice@example.com")

	updated, err := store.UpdateStatus(ctx, created.UserID, havenwatch.AccountDisabled)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != havenwatch.AccountDisabled {
		t.Fatalf("status = %v", updated.Status)
	}

	updated, err = store.UpdateMetadata(ctx, created.UserID, map[string]string{"display_name": "Alice"})
	if err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if updated.Metadata["display_name"] != "Alice" {
		t.Fatalf("metadata = %v", updated.Metadata)
	}
	// The other fields survive the update.
	if updated.Status != havenwatch.AccountDisabled {
		t.Fatal("metadata update clobbered status")
	}
}
