package adapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/havenwatch/havenwatch"
	"github.com/havenwatch/havenwatch/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingNav collects every route replacement.
type recordingNav struct {
	mu    sync.Mutex
	paths []string
}

func (n *recordingNav) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *recordingNav) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

type stubBackend struct {
	mu         sync.Mutex
	resetCalls int
	failLogout bool
}

func (b *stubBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK)
	})
	mux.HandleFunc("/auth/reset-password/confirm", func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK)
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeSession(w, http.StatusOK)
	})
	mux.HandleFunc("/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		fail := b.failLogout
		b.mu.Unlock()
		if fail {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "boom"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	mux.HandleFunc("/auth/reset-password", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.resetCalls++
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	})
	return mux
}

func writeSession(w http.ResponseWriter, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":        "success",
		"token":         "access-token",
		"refresh_token": "refresh-token",
		"expires_at":    time.Now().Add(15 * time.Minute).Unix(),
		"data": map[string]any{
			"user": map[string]any{"id": "u1", "email": "alice@example.com"},
		},
	})
}

func newTestAdapter(t *testing.T) (*Adapter, *recordingNav, *stubBackend) {
	t.Helper()

	backend := &stubBackend{}
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	client, err := provider.New(provider.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	nav := &recordingNav{}
	a, err := New(Config{
		Client:             client,
		Navigator:          nav,
		RecoveryRedirectTo: "homesafetyapp://auth/reset-password-confirm",
	})
	require.NoError(t, err)
	t.Cleanup(a.Stop)

	require.True(t, a.Loading(), "adapter must start in the loading state")
	require.NoError(t, a.Start(context.Background()))

	return a, nav, backend
}

func TestStartResolvesLoadingWithoutSession(t *testing.T) {
	a, nav, _ := newTestAdapter(t)

	assert.False(t, a.Loading())
	assert.False(t, a.Authenticated())
	assert.Empty(t, nav.all(), "initial resolution must not navigate")
}

func TestSignInNavigatesHome(t *testing.T) {
	a, nav, _ := newTestAdapter(t)

	sess, err := a.SignIn(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.User.ID)

	assert.True(t, a.Authenticated())
	assert.Equal(t, []string{PathHome}, nav.all())
}

func TestSignOutAlwaysLandsOnLanding(t *testing.T) {
	a, nav, backend := newTestAdapter(t)

	_, err := a.SignIn(context.Background(), "alice@example.com", "correct-horse")
	require.NoError(t, err)

	backend.mu.Lock()
	backend.failLogout = true
	backend.mu.Unlock()

	// The server call fails, but the local session is still cleared and the
	// shell still navigates to the landing screen.
	err = a.SignOut(context.Background())
	assert.Error(t, err)
	assert.False(t, a.Authenticated())
	assert.Equal(t, []string{PathHome, PathLanding}, nav.all())
}

func TestRequestPasswordResetValidatesEmailLocally(t *testing.T) {
	a, _, backend := newTestAdapter(t)

	err := a.RequestPasswordReset(context.Background(), "not-an-email")
	assert.ErrorIs(t, err, havenwatch.ErrInvalidEmail)

	backend.mu.Lock()
	calls := backend.resetCalls
	backend.mu.Unlock()
	assert.Zero(t, calls, "malformed email must not reach the network")

	require.NoError(t, a.RequestPasswordReset(context.Background(), "alice@example.com"))
	backend.mu.Lock()
	calls = backend.resetCalls
	backend.mu.Unlock()
	assert.Equal(t, 1, calls)
}

func TestRecoveryNavigatesToConfirmScreen(t *testing.T) {
	a, nav, _ := newTestAdapter(t)

	sess, err := a.ExchangeRecoveryToken(context.Background(), "recovery-token")
	require.NoError(t, err)
	assert.True(t, sess.Recovery)

	assert.Equal(t, []string{PathResetPasswordConfirm}, nav.all())
	assert.True(t, a.Authenticated(), "recovery session counts as authenticated")
}
