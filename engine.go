package havenwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/havenwatch/havenwatch/internal"
	"github.com/havenwatch/havenwatch/internal/rate"
	"github.com/havenwatch/havenwatch/jwt"
	"github.com/havenwatch/havenwatch/password"
	"github.com/havenwatch/havenwatch/session"
	"github.com/redis/go-redis/v9"
)

// Engine is the credential service core. Construct one with [Builder.Build];
// the zero value is not usable. All methods are safe for concurrent use.
type Engine struct {
	config       Config
	sessionStore *session.Store
	challenges   *challengeStore
	rateLimiter  *rate.Limiter
	events       *eventDispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	jwtManager   *jwt.Manager
	users        UserProvider
}

// SignIn verifies the credentials and opens a session. Unknown emails and
// wrong passwords are indistinguishable to the caller: both return
// [ErrInvalidCredentials].
func (e *Engine) SignIn(ctx context.Context, email, passwd string) (*SignInResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)
	if e.rateLimiter != nil {
		if err := e.rateLimiter.Check(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metrics.Inc(MetricSignInRateLimited)
				return nil, ErrLoginRateLimited
			}
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	if email == "" || passwd == "" {
		return nil, ErrInvalidRequest
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			e.recordFailedLogin(ctx, email, ip)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(passwd, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !ok {
		e.recordFailedLogin(ctx, email, ip)
		return nil, ErrInvalidCredentials
	}

	switch user.Status {
	case AccountDisabled:
		return nil, ErrAccountDisabled
	case AccountPendingConfirmation:
		if e.config.EmailConfirmation.Required {
			return nil, ErrAccountUnconfirmed
		}
	}

	if e.config.Password.UpgradeOnLogin {
		e.maybeUpgradeHash(ctx, &user, passwd)
	}

	result, err := e.openSession(ctx, user, false, e.config.Session.Lifetime)
	if err != nil {
		return nil, err
	}

	if e.rateLimiter != nil {
		// Best effort; a stale counter only shortens the window.
		_ = e.rateLimiter.Reset(ctx, email, ip)
	}

	e.metrics.Inc(MetricSignInSuccess)
	e.emit(EventSignedIn, result.sessionInfo())

	return result, nil
}

// Refresh rotates the refresh token and issues a fresh access token.
// Presenting an already-rotated refresh token destroys the session and
// returns [ErrRefreshReuse].
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*SignInResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	sessionID, secret, err := internal.DecodeToken(refreshToken)
	if err != nil {
		e.metrics.Inc(MetricRefreshFailure)
		return nil, ErrRefreshInvalid
	}

	nextSecret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}

	sess, err := e.sessionStore.RotateRefreshHash(ctx, sessionID, internal.HashSecret(secret), internal.HashSecret(nextSecret))
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRefreshHashMismatch):
			// Rotated-away secret presented again: assume theft and burn
			// the whole session.
			e.metrics.Inc(MetricRefreshReuseDetected)
			_ = e.sessionStore.Delete(ctx, "", sessionID)
			return nil, ErrRefreshReuse
		case errors.Is(err, redis.Nil), errors.Is(err, session.ErrSessionExpired):
			e.metrics.Inc(MetricRefreshFailure)
			return nil, ErrSessionNotFound
		default:
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	user, err := e.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			_ = e.sessionStore.Delete(ctx, sess.UserID, sessionID)
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if user.Status == AccountDisabled {
		_ = e.sessionStore.DeleteAllForUser(ctx, user.UserID)
		return nil, ErrAccountDisabled
	}

	access, err := e.jwtManager.CreateAccess(sess.UserID, sess.SessionID, sess.Email, sess.Recovery)
	if err != nil {
		return nil, err
	}
	refresh, err := internal.EncodeToken(sessionID, nextSecret)
	if err != nil {
		return nil, err
	}

	result := &SignInResult{
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(e.config.JWT.AccessTTL).Unix(),
		},
		User:      user.Public(),
		sessionID: sess.SessionID,
		recovery:  sess.Recovery,
		expiresAt: sess.ExpiresAt,
	}

	e.metrics.Inc(MetricRefreshSuccess)
	e.emit(EventTokenRefreshed, result.sessionInfo())

	return result, nil
}

// Validate parses an access token and confirms the backing session still
// exists. A valid signature over a destroyed session is rejected.
func (e *Engine) Validate(ctx context.Context, accessToken string) (*AuthResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	sess, err := e.sessionStore.Get(ctx, claims.SID)
	if err != nil {
		switch {
		case errors.Is(err, redis.Nil), errors.Is(err, session.ErrSessionExpired):
			return nil, ErrSessionNotFound
		default:
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}
	if sess.UserID != claims.Subject {
		return nil, ErrTokenInvalid
	}

	return &AuthResult{
		UserID:    claims.Subject,
		Email:     sess.Email,
		SessionID: sess.SessionID,
		Recovery:  sess.Recovery,
	}, nil
}

// SignOut destroys the session. Destroying a session that no longer exists
// succeeds; the signed-out event is emitted either way so subscribers can
// settle their local state.
func (e *Engine) SignOut(ctx context.Context, sessionID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	var info *SessionInfo
	if sess, err := e.sessionStore.Get(ctx, sessionID); err == nil {
		info = &SessionInfo{
			SessionID: sess.SessionID,
			UserID:    sess.UserID,
			Email:     sess.Email,
			Recovery:  sess.Recovery,
			ExpiresAt: sess.ExpiresAt,
		}
	}

	userID := ""
	if info != nil {
		userID = info.UserID
	}
	if err := e.sessionStore.Delete(ctx, userID, sessionID); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metrics.Inc(MetricSignOut)
	e.metrics.Inc(MetricSessionInvalidated)
	e.emit(EventSignedOut, info)

	return nil
}

// SignOutByAccessToken resolves the session from the token and destroys it.
func (e *Engine) SignOutByAccessToken(ctx context.Context, accessToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return ErrTokenInvalid
	}

	return e.SignOut(ctx, claims.SID)
}

// MetricsSnapshot returns current counter values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// EventsDropped reports how many events were discarded because the dispatch
// buffer was full.
func (e *Engine) EventsDropped() uint64 {
	if e.events == nil {
		return 0
	}
	return e.events.Dropped()
}

// Close drains and stops the event dispatcher.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.events != nil {
		e.events.Close()
	}
	return nil
}

// openSession creates a session for the user, persists it, and issues the
// token pair.
func (e *Engine) openSession(ctx context.Context, user UserRecord, recovery bool, lifetime time.Duration) (*SignInResult, error) {
	sessionID, err := internal.NewID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &session.Session{
		SessionID:   sessionID.String(),
		UserID:      user.UserID,
		Email:       user.Email,
		Recovery:    recovery,
		RefreshHash: internal.HashSecret(secret),
		CreatedAt:   now.Unix(),
		ExpiresAt:   now.Add(lifetime).Unix(),
	}

	if err := e.sessionStore.Save(ctx, sess, lifetime); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	access, err := e.jwtManager.CreateAccess(user.UserID, sess.SessionID, user.Email, recovery)
	if err != nil {
		_ = e.sessionStore.Delete(ctx, user.UserID, sess.SessionID)
		return nil, err
	}
	refresh, err := internal.EncodeToken(sess.SessionID, secret)
	if err != nil {
		_ = e.sessionStore.Delete(ctx, user.UserID, sess.SessionID)
		return nil, err
	}

	e.metrics.Inc(MetricSessionCreated)

	return &SignInResult{
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    now.Add(e.config.JWT.AccessTTL).Unix(),
		},
		User:      user.Public(),
		sessionID: sess.SessionID,
		recovery:  recovery,
		expiresAt: sess.ExpiresAt,
	}, nil
}

func (e *Engine) recordFailedLogin(ctx context.Context, email, ip string) {
	e.metrics.Inc(MetricSignInFailure)
	if e.rateLimiter == nil {
		return
	}
	_ = e.rateLimiter.Increment(ctx, email, ip)
}

// maybeUpgradeHash rehashes the password when the stored hash was derived
// with weaker parameters. Failures are swallowed: the login already
// succeeded.
func (e *Engine) maybeUpgradeHash(ctx context.Context, user *UserRecord, passwd string) {
	upgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash)
	if err != nil || !upgrade {
		return
	}
	newHash, err := e.passwordHash.Hash(passwd)
	if err != nil {
		return
	}
	if err := e.users.UpdatePasswordHash(ctx, user.UserID, newHash); err == nil {
		user.PasswordHash = newHash
	}
}

func (e *Engine) emit(kind EventKind, info *SessionInfo) {
	if e.events == nil {
		return
	}
	e.events.Emit(context.Background(), Event{
		Kind:    kind,
		Session: info,
		At:      time.Now(),
	})
}
