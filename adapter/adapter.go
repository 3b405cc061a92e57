package adapter

import (
	"context"
	"sync"

	"github.com/havenwatch/havenwatch"
	"github.com/havenwatch/havenwatch/provider"
	"go.uber.org/zap"
)

// Navigator replaces the current route. Implementations must be safe to call
// from the goroutine that triggered the auth event.
type Navigator interface {
	Replace(path string)
}

// NavigatorFunc adapts a function to the [Navigator] interface.
type NavigatorFunc func(path string)

// Replace calls f.
func (f NavigatorFunc) Replace(path string) { f(path) }

// Adapter wraps the provider client with the session state machine the app
// shell renders from. It starts in the loading state, leaves it exactly once
// after the initial session lookup, and from then on tracks auth events.
type Adapter struct {
	client *provider.Client
	nav    Navigator
	logger *zap.Logger

	// RecoveryRedirectTo is the deep link embedded in recovery emails.
	recoveryRedirectTo string

	mu          sync.Mutex
	loading     bool
	session     *provider.Session
	unsubscribe func()
}

// Config configures an [Adapter].
type Config struct {
	Client    *provider.Client
	Navigator Navigator
	// RecoveryRedirectTo is passed to the credential service on password
	// reset requests so the emailed link reopens the app.
	RecoveryRedirectTo string
	Logger             *zap.Logger
}

// New creates an [Adapter] in the loading state. Call [Adapter.Start] to
// resolve the initial session.
func New(cfg Config) (*Adapter, error) {
	if cfg.Client == nil {
		return nil, provider.ErrNotInitialized
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	nav := cfg.Navigator
	if nav == nil {
		nav = NavigatorFunc(func(string) {})
	}

	return &Adapter{
		client:             cfg.Client,
		nav:                nav,
		logger:             logger,
		recoveryRedirectTo: cfg.RecoveryRedirectTo,
		loading:            true,
	}, nil
}

// Start subscribes to auth events and resolves the initial session. The
// loading state ends exactly once, whether or not a session exists; a failed
// lookup resolves to signed out rather than wedging the shell in loading.
func (a *Adapter) Start(ctx context.Context) error {
	unsubscribe, err := a.client.OnAuthStateChange(a.handleEvent)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.session = a.client.CurrentSession()
	a.loading = false
	a.mu.Unlock()

	return nil
}

// Stop unsubscribes from auth events.
func (a *Adapter) Stop() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Loading reports whether the initial session lookup is still in flight.
func (a *Adapter) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading
}

// Authenticated reports whether a session is held. Always false while
// loading.
func (a *Adapter) Authenticated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.loading && a.session != nil
}

// Session returns the current session, or nil.
func (a *Adapter) Session() *provider.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return nil
	}
	copied := *a.session
	return &copied
}

// SignIn authenticates with email and password. Navigation to the home
// screen happens through the resulting auth event, not here.
func (a *Adapter) SignIn(ctx context.Context, email, password string) (*provider.Session, error) {
	sess, err := a.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		a.logger.Debug("sign-in rejected", zap.Error(err))
		return nil, err
	}
	return sess, nil
}

// SignUp registers an account. When the service requires email confirmation
// the result carries no session and the caller should show a
// check-your-inbox screen.
func (a *Adapter) SignUp(ctx context.Context, email, password string, metadata map[string]string) (*provider.SignUpResult, error) {
	return a.client.SignUp(ctx, email, password, provider.SignUpOptions{
		EmailRedirectTo: a.recoveryRedirectTo,
		Metadata:        metadata,
	})
}

// SignOut destroys the session. The signed-out event fires even when the
// server call fails, so the shell always lands on the landing screen.
func (a *Adapter) SignOut(ctx context.Context) error {
	if err := a.client.SignOut(ctx); err != nil {
		a.logger.Warn("server-side sign-out failed", zap.Error(err))
		return err
	}
	return nil
}

// RequestPasswordReset validates the email shape locally before any network
// call, then asks the service to send a recovery link.
func (a *Adapter) RequestPasswordReset(ctx context.Context, email string) error {
	if !havenwatch.ValidEmail(email) {
		return havenwatch.ErrInvalidEmail
	}
	return a.client.ResetPasswordForEmail(ctx, email, a.recoveryRedirectTo)
}

// ExchangeRecoveryToken completes a recovery deep link. The resulting event
// routes the shell to the password-reset confirmation screen.
func (a *Adapter) ExchangeRecoveryToken(ctx context.Context, token string) (*provider.Session, error) {
	return a.client.ExchangeRecoveryToken(ctx, token)
}

// UpdatePassword sets a new password on the current session.
func (a *Adapter) UpdatePassword(ctx context.Context, newPassword string) (*provider.User, error) {
	return a.client.UpdateUser(ctx, provider.UpdateUserRequest{Password: &newPassword})
}

// handleEvent applies an auth event to the state machine and drives
// navigation. Sign-in and recovery replace the route; refreshes update the
// session silently.
func (a *Adapter) handleEvent(event provider.Event) {
	a.mu.Lock()
	a.session = event.Session
	a.loading = false
	a.mu.Unlock()

	a.logger.Debug("auth state changed", zap.String("event", string(event.Kind)))

	switch event.Kind {
	case provider.SignedIn:
		a.nav.Replace(PathHome)
	case provider.SignedOut:
		a.nav.Replace(PathLanding)
	case provider.PasswordRecovery:
		a.nav.Replace(PathResetPasswordConfirm)
	case provider.TokenRefreshed:
		// Token rotation is invisible to the user.
	}
}
