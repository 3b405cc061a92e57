package havenwatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/havenwatch/havenwatch/internal"
)

// SignUp registers a new account. When email confirmation is required the
// account is created pending and no tokens are issued; the returned
// confirmation token must reach the user out of band. Otherwise the account
// is active immediately and a session is opened.
func (e *Engine) SignUp(ctx context.Context, req SignUpRequest) (*SignUpResult, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	if !ValidEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	hash, err := e.passwordHash.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	status := AccountActive
	if e.config.EmailConfirmation.Required {
		status = AccountPendingConfirmation
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		Email:        req.Email,
		PasswordHash: hash,
		Status:       status,
		Metadata:     req.Metadata,
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			e.metrics.Inc(MetricSignUpDuplicate)
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metrics.Inc(MetricSignUpSuccess)

	if e.config.EmailConfirmation.Required {
		token, err := e.issueChallenge(ctx, challengeEmailConfirm, user.UserID, e.config.EmailConfirmation.TTL)
		if err != nil {
			return nil, err
		}
		return &SignUpResult{
			User:                 user.Public(),
			ConfirmationRequired: true,
			ConfirmationToken:    token,
		}, nil
	}

	signedIn, err := e.openSession(ctx, user, false, e.config.Session.Lifetime)
	if err != nil {
		return nil, err
	}
	e.emit(EventSignedIn, signedIn.sessionInfo())

	return &SignUpResult{
		User:   signedIn.User,
		Tokens: &signedIn.Tokens,
	}, nil
}

// ConfirmEmail consumes a confirmation token and activates the account.
func (e *Engine) ConfirmEmail(ctx context.Context, token string) (User, error) {
	if e == nil || e.users == nil {
		return User{}, ErrEngineNotReady
	}

	challengeID, secret, err := internal.DecodeToken(token)
	if err != nil {
		return User{}, ErrChallengeInvalid
	}

	record, err := e.challenges.Consume(ctx, challengeEmailConfirm, challengeID, internal.HashSecret(secret), e.config.EmailConfirmation.MaxAttempts)
	if err != nil {
		return User{}, mapChallengeErr(err)
	}

	user, err := e.users.UpdateStatus(ctx, record.UserID, AccountActive)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metrics.Inc(MetricEmailConfirmed)
	return user.Public(), nil
}

// issueChallenge mints a single-use opaque token and stores only its hash.
func (e *Engine) issueChallenge(ctx context.Context, kind challengeKind, userID string, ttl time.Duration) (string, error) {
	challengeID, err := internal.NewID()
	if err != nil {
		return "", err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return "", err
	}

	record := &challengeRecord{
		UserID:     userID,
		SecretHash: internal.HashSecret(secret),
		Kind:       kind,
		ExpiresAt:  time.Now().Add(ttl).Unix(),
	}
	if err := e.challenges.Save(ctx, challengeID.String(), record, ttl); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	token, err := internal.EncodeToken(challengeID.String(), secret)
	if err != nil {
		return "", err
	}
	return token, nil
}

func mapChallengeErr(err error) error {
	switch {
	case errors.Is(err, errChallengeExhausted):
		return ErrChallengeAttempts
	case errors.Is(err, errChallengeNotFound), errors.Is(err, errChallengeMismatch):
		return ErrChallengeInvalid
	default:
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}
