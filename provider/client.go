package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultTimeout = 10 * time.Second

// Config configures a [Client].
type Config struct {
	// BaseURL is the credential service root, e.g. "https://auth.example.com/api/v1".
	BaseURL string
	// APIKey is sent as the X-Api-Key header when set.
	APIKey string
	// Timeout bounds each request. Defaults to 10s.
	Timeout time.Duration
}

// Client talks to the credential service and tracks the current session.
// Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client

	mu          sync.Mutex
	session     *Session
	subscribers map[int]func(Event)
	nextSubID   int
}

// New validates the configuration and returns a [Client].
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		http:        &http.Client{Timeout: timeout},
		subscribers: map[int]func(Event){},
	}, nil
}

// CurrentSession returns the session the client holds, or nil.
func (c *Client) CurrentSession() *Session {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	copied := *c.session
	return &copied
}

// OnAuthStateChange registers a subscriber for auth events. The returned
// function unsubscribes it. Callbacks run synchronously on the goroutine that
// triggered the change and must not call back into the client.
func (c *Client) OnAuthStateChange(fn func(Event)) (unsubscribe func(), err error) {
	if c == nil {
		return nil, ErrNotInitialized
	}
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}, nil
}

// SignInWithPassword authenticates with email and password and establishes a
// session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotInitialized
	}

	env, err := c.do(ctx, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, err
	}

	sess, err := env.session(false)
	if err != nil {
		return nil, err
	}

	c.setSession(sess, SignedIn)
	return sess, nil
}

// SignUp registers an account. When the service issues tokens immediately a
// session is established; otherwise the account awaits email confirmation
// and Session is nil.
func (c *Client) SignUp(ctx context.Context, email, password string, opts SignUpOptions) (*SignUpResult, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotInitialized
	}

	body := map[string]any{
		"email":    email,
		"password": password,
	}
	if opts.EmailRedirectTo != "" {
		body["email_redirect_to"] = opts.EmailRedirectTo
	}
	if opts.Metadata != nil {
		body["metadata"] = opts.Metadata
	}

	env, err := c.do(ctx, http.MethodPost, "/auth/signup", "", body)
	if err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, errors.New("malformed signup response")
	}

	result := &SignUpResult{User: *env.Data.User}
	if env.Token != "" {
		sess, err := env.session(false)
		if err != nil {
			return nil, err
		}
		result.Session = sess
		c.setSession(sess, SignedIn)
	}

	return result, nil
}

// SignOut destroys the session server side and always clears the local one.
// Subscribers observe [SignedOut] even when the server call fails, so the UI
// settles in the signed-out state regardless.
func (c *Client) SignOut(ctx context.Context) error {
	if c == nil || c.http == nil {
		return ErrNotInitialized
	}

	token := ""
	if sess := c.CurrentSession(); sess != nil {
		token = sess.AccessToken
	}

	var err error
	if token != "" {
		_, err = c.do(ctx, http.MethodPost, "/auth/logout", token, nil)
	}

	c.setSession(nil, SignedOut)
	return err
}

// ResetPasswordForEmail asks the service to send a recovery link. The
// redirectTo deep link is embedded in the email so the link reopens the app.
func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	if c == nil || c.http == nil {
		return ErrNotInitialized
	}

	body := map[string]string{"email": email}
	if redirectTo != "" {
		body["redirect_to"] = redirectTo
	}

	_, err := c.do(ctx, http.MethodPost, "/auth/reset-password", "", body)
	return err
}

// ExchangeRecoveryToken trades a recovery-link token for a temporary session
// that may only set a new password.
func (c *Client) ExchangeRecoveryToken(ctx context.Context, token string) (*Session, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotInitialized
	}

	env, err := c.do(ctx, http.MethodPost, "/auth/reset-password/confirm", "", map[string]string{
		"token": token,
	})
	if err != nil {
		return nil, err
	}

	sess, err := env.session(true)
	if err != nil {
		return nil, err
	}

	c.setSession(sess, PasswordRecovery)
	return sess, nil
}

// RefreshSession rotates the refresh token and replaces the session's token
// pair.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotInitialized
	}

	current := c.CurrentSession()
	if current == nil {
		return nil, ErrNoSession
	}

	env, err := c.do(ctx, http.MethodPost, "/auth/refresh", "", map[string]string{
		"refresh_token": current.RefreshToken,
	})
	if err != nil {
		return nil, err
	}

	sess, err := env.session(current.Recovery)
	if err != nil {
		return nil, err
	}

	c.setSession(sess, TokenRefreshed)
	return sess, nil
}

// GetUser fetches the account behind the current session.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotInitialized
	}

	sess := c.CurrentSession()
	if sess == nil {
		return nil, ErrNoSession
	}

	env, err := c.do(ctx, http.MethodGet, "/users/me", sess.AccessToken, nil)
	if err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, errors.New("malformed user response")
	}

	return env.Data.User, nil
}

// UpdateUser applies a partial profile update to the current account.
func (c *Client) UpdateUser(ctx context.Context, req UpdateUserRequest) (*User, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotInitialized
	}

	sess := c.CurrentSession()
	if sess == nil {
		return nil, ErrNoSession
	}

	env, err := c.do(ctx, http.MethodPatch, "/users/me", sess.AccessToken, req)
	if err != nil {
		return nil, err
	}
	if env.Data.User == nil {
		return nil, errors.New("malformed user response")
	}

	c.mu.Lock()
	if c.session != nil {
		c.session.User = *env.Data.User
	}
	c.mu.Unlock()

	return env.Data.User, nil
}

// setSession swaps the held session and notifies subscribers.
func (c *Client) setSession(sess *Session, kind EventKind) {
	c.mu.Lock()
	c.session = sess
	subs := make([]func(Event), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	event := Event{Kind: kind}
	if sess != nil {
		copied := *sess
		event.Session = &copied
	}
	for _, fn := range subs {
		fn(event)
	}
}

type responseEnvelope struct {
	Status       string `json:"status"`
	Message      string `json:"message,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	Data         struct {
		User *User `json:"user,omitempty"`
	} `json:"data,omitempty"`
}

func (env *responseEnvelope) session(recovery bool) (*Session, error) {
	if env.Token == "" || env.Data.User == nil {
		return nil, errors.New("malformed session response")
	}
	return &Session{
		AccessToken:  env.Token,
		RefreshToken: env.RefreshToken,
		ExpiresAt:    time.Unix(env.ExpiresAt, 0),
		User:         *env.Data.User,
		Recovery:     recovery,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body any) (*responseEnvelope, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("credential service unreachable: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var env responseEnvelope
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &env); err != nil && resp.StatusCode < 300 {
			return nil, fmt.Errorf("malformed response: %w", err)
		}
	}

	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
	}

	return &env, nil
}
