package havenwatch

import "errors"

var (
	// ErrEngineNotReady is returned when the engine or a required dependency
	// was not initialized before use.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidRequest is returned when a required field is missing or empty.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidEmail is returned when an email address fails the permissive
	// local@domain.tld syntax check. The check runs before any store or
	// provider call.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrInvalidCredentials covers both unknown-email and password-mismatch
	// failures; callers cannot distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned when a token's subject no longer exists.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmailExists is returned by sign-up when the email is already registered.
	ErrEmailExists = errors.New("email already registered")
	// ErrAccountDisabled is returned when the account has been disabled.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountUnconfirmed is returned when sign-in requires a confirmed
	// email and the account is still pending confirmation.
	ErrAccountUnconfirmed = errors.New("account pending email confirmation")
	// ErrLoginRateLimited is returned when the login attempt budget for an
	// email or IP is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrUnauthorized is returned when access-token validation fails.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrTokenInvalid is returned when a presented token cannot be parsed or
	// verified.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionNotFound is returned when the session behind a valid token no
	// longer exists.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshInvalid is returned when a refresh token is malformed or does
	// not match a live session.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrRefreshReuse is returned when an already-rotated refresh token is
	// presented again. The session is destroyed.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrPasswordPolicy is returned when a password does not meet the hashing
	// policy's minimum requirements.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrPasswordReuse is returned when a password change supplies the
	// current password as the new one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrChallengeInvalid is returned when a reset or confirmation token is
	// unknown, expired, or does not match its stored record.
	ErrChallengeInvalid = errors.New("challenge invalid")
	// ErrChallengeAttempts is returned when a challenge exceeded its attempt
	// budget and was destroyed.
	ErrChallengeAttempts = errors.New("challenge attempts exceeded")
	// ErrPasswordResetDisabled is returned when the password reset flow is
	// turned off in configuration.
	ErrPasswordResetDisabled = errors.New("password reset disabled")
	// ErrSessionInvalidationFailed is returned when a password change
	// succeeded but the user's other sessions could not be destroyed.
	ErrSessionInvalidationFailed = errors.New("session invalidation failed")
	// ErrProviderUnavailable is returned when the backing store or the hosted
	// credential service cannot be reached.
	ErrProviderUnavailable = errors.New("provider unavailable")
)
