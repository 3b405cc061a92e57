package havenwatch

import (
	"context"
	"errors"
	"fmt"
)

// ChangePassword replaces the password after verifying the current one. Every
// other session of the user is destroyed; the calling session survives.
func (e *Engine) ChangePassword(ctx context.Context, auth *AuthResult, oldPassword, newPassword string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}
	if auth == nil {
		return ErrUnauthorized
	}

	user, err := e.users.GetUserByID(ctx, auth.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	ok, err := e.passwordHash.Verify(oldPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !ok {
		return ErrInvalidCredentials
	}

	if newPassword == oldPassword {
		return ErrPasswordReuse
	}

	if err := e.setPassword(ctx, user.UserID, newPassword, auth.SessionID); err != nil {
		return err
	}

	e.metrics.Inc(MetricPasswordChangeSuccess)
	return nil
}

// UpdateUser applies a partial account update. Recovery sessions may only set
// a new password; once it is set, every session of the user is destroyed and
// the user must sign in again.
func (e *Engine) UpdateUser(ctx context.Context, auth *AuthResult, req UpdateUserRequest) (User, error) {
	if e == nil || e.users == nil {
		return User{}, ErrEngineNotReady
	}
	if auth == nil {
		return User{}, ErrUnauthorized
	}
	if auth.Recovery && req.Metadata != nil {
		return User{}, ErrUnauthorized
	}
	if req.Password == nil && req.Metadata == nil {
		return User{}, ErrInvalidRequest
	}

	user, err := e.users.GetUserByID(ctx, auth.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if req.Password != nil {
		same, err := e.passwordHash.Verify(*req.Password, user.PasswordHash)
		if err == nil && same {
			return User{}, ErrPasswordReuse
		}

		keep := auth.SessionID
		if auth.Recovery {
			// The recovery session is single purpose; burn it too.
			keep = ""
		}
		if err := e.setPassword(ctx, user.UserID, *req.Password, keep); err != nil {
			return User{}, err
		}
		e.metrics.Inc(MetricPasswordChangeSuccess)
	}

	if req.Metadata != nil {
		user, err = e.users.UpdateMetadata(ctx, user.UserID, req.Metadata)
		if err != nil {
			return User{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
	}

	return user.Public(), nil
}

// setPassword hashes and stores the new password, then invalidates sessions.
// An empty keepSessionID destroys all of them. A partial failure after the
// hash is stored is surfaced as [ErrSessionInvalidationFailed] so the caller
// knows stale sessions may remain.
func (e *Engine) setPassword(ctx context.Context, userID, newPassword, keepSessionID string) error {
	hash, err := e.passwordHash.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	if err := e.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	if keepSessionID == "" {
		err = e.sessionStore.DeleteAllForUser(ctx, userID)
	} else {
		err = e.sessionStore.DeleteAllForUserExcept(ctx, userID, keepSessionID)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionInvalidationFailed, err)
	}

	e.metrics.Inc(MetricSessionInvalidated)
	return nil
}
