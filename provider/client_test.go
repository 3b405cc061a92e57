package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sessionBody(access, refresh string) map[string]any {
	return map[string]any{
		"status":        "success",
		"token":         access,
		"refresh_token": refresh,
		"expires_at":    time.Now().Add(15 * time.Minute).Unix(),
		"data": map[string]any{
			"user": map[string]any{"id": "u1", "email": "alice@example.com"},
		},
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSignInWithPassword(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(sessionBody("acc-1", "ref-1"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	sess, err := client.SignInWithPassword(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "acc-1", sess.AccessToken)
	assert.Equal(t, "alice@example.com", sess.User.Email)
	assert.Equal(t, "alice@example.com", gotBody["email"])

	current := client.CurrentSession()
	require.NotNil(t, current)
	assert.Equal(t, "acc-1", current.AccessToken)
}

func TestSignInErrorIsNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "fail",
			"message": "Incorrect email or password",
		})
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.SignInWithPassword(context.Background(), "alice@example.com", "wrong")
	require.Error(t, err)

	apiErr, ok := IsAPIError(err)
	require.True(t, ok, "expected an APIError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Incorrect email or password", apiErr.Message)
	assert.Nil(t, client.CurrentSession(), "failed sign-in must not store a session")
}

func TestSubscriptionAndUnsubscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sessionBody("acc-1", "ref-1"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	var mu sync.Mutex
	var kinds []EventKind
	unsubscribe, err := client.OnAuthStateChange(func(event Event) {
		mu.Lock()
		kinds = append(kinds, event.Kind)
		mu.Unlock()
	})
	require.NoError(t, err)

	_, err = client.SignInWithPassword(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)
	_, err = client.RefreshSession(context.Background())
	require.NoError(t, err)
	require.NoError(t, client.SignOut(context.Background()))

	mu.Lock()
	assert.Equal(t, []EventKind{SignedIn, TokenRefreshed, SignedOut}, kinds)
	mu.Unlock()

	unsubscribe()
	_, err = client.SignInWithPassword(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)

	mu.Lock()
	assert.Len(t, kinds, 3, "unsubscribed callback must not fire")
	mu.Unlock()
}

func TestRefreshWithoutSession(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost:0"})
	require.NoError(t, err)

	_, err = client.RefreshSession(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestExchangeRecoveryTokenMarksRecovery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/auth/reset-password/confirm", r.URL.Path)
		_ = json.NewEncoder(w).Encode(sessionBody("acc-r", "ref-r"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	sess, err := client.ExchangeRecoveryToken(context.Background(), "tok")
	require.NoError(t, err)
	assert.True(t, sess.Recovery)

	// Recovery survives a refresh of the same session.
	refreshed, err := client.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.True(t, refreshed.Recovery)
}

func TestUpdateUserUpdatesStoredSession(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path == "/users/me" {
			require.Equal(t, http.MethodPatch, r.Method)
			require.Equal(t, "Bearer acc-1", r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(map[string]any{
				"status": "success",
				"data": map[string]any{
					"user": map[string]any{
						"id":       "u1",
						"email":    "alice@example.com",
						"metadata": map[string]string{"display_name": "Alice"},
					},
				},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(sessionBody("acc-1", "ref-1"))
	}))
	defer srv.Close()

	client, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.SignInWithPassword(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)

	user, err := client.UpdateUser(context.Background(), UpdateUserRequest{
		Metadata: map[string]string{"display_name": "Alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Metadata["display_name"])

	current := client.CurrentSession()
	require.NotNil(t, current)
	assert.Equal(t, "Alice", current.User.Metadata["display_name"])
}

func TestSignOutWithoutSessionStillEmits(t *testing.T) {
	client, err := New(Config{BaseURL: "http://localhost:0"})
	require.NoError(t, err)

	var kinds []EventKind
	_, err = client.OnAuthStateChange(func(event Event) { kinds = append(kinds, event.Kind) })
	require.NoError(t, err)

	require.NoError(t, client.SignOut(context.Background()))
	assert.Equal(t, []EventKind{SignedOut}, kinds)
}
