package havenwatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/havenwatch/havenwatch/internal"
)

// RequestPasswordReset validates the email shape and, for a registered
// address, mints a single-use recovery token. Unknown addresses return an
// empty token and no error so callers cannot probe for registered emails.
// The email format check runs before any lookup.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil || e.users == nil {
		return "", ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return "", ErrPasswordResetDisabled
	}

	if !ValidEmail(email) {
		return "", ErrInvalidEmail
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	token, err := e.issueChallenge(ctx, challengePasswordReset, user.UserID, e.config.PasswordReset.TTL)
	if err != nil {
		return "", err
	}

	e.metrics.Inc(MetricPasswordResetRequest)
	return token, nil
}

// ExchangeRecoveryToken consumes a recovery token and opens a short-lived
// recovery session. The session is only good for setting a new password via
// [Engine.UpdateUser].
func (e *Engine) ExchangeRecoveryToken(ctx context.Context, token string) (*SignInResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}
	if !e.config.PasswordReset.Enabled {
		return nil, ErrPasswordResetDisabled
	}

	challengeID, secret, err := internal.DecodeToken(token)
	if err != nil {
		return nil, ErrChallengeInvalid
	}

	record, err := e.challenges.Consume(ctx, challengePasswordReset, challengeID, internal.HashSecret(secret), e.config.PasswordReset.MaxAttempts)
	if err != nil {
		return nil, mapChallengeErr(err)
	}

	user, err := e.users.GetUserByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if user.Status == AccountDisabled {
		return nil, ErrAccountDisabled
	}

	result, err := e.openSession(ctx, user, true, e.config.Session.RecoveryLifetime)
	if err != nil {
		return nil, err
	}

	e.metrics.Inc(MetricPasswordRecovery)
	e.emit(EventPasswordRecovery, result.sessionInfo())

	return result, nil
}
