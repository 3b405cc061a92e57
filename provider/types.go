package provider

import "time"

// User is the account view returned by the credential service.
type User struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Session is a live session held by the client.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
	// Recovery marks the short-lived session created by a password-reset
	// link; it may only be used to set a new password.
	Recovery bool `json:"recovery,omitempty"`
}

// EventKind enumerates the auth state changes the client publishes.
type EventKind string

const (
	// SignedIn fires when a session is established by sign-in or sign-up.
	SignedIn EventKind = "SIGNED_IN"
	// SignedOut fires when the session is destroyed.
	SignedOut EventKind = "SIGNED_OUT"
	// PasswordRecovery fires when a recovery link establishes a temporary
	// session.
	PasswordRecovery EventKind = "PASSWORD_RECOVERY"
	// TokenRefreshed fires when the refresh token is rotated.
	TokenRefreshed EventKind = "TOKEN_REFRESHED"
)

// Event is a single auth state change. Session is nil for [SignedOut].
type Event struct {
	Kind    EventKind
	Session *Session
}

// SignUpOptions carries optional sign-up parameters.
type SignUpOptions struct {
	// EmailRedirectTo is embedded in the confirmation email so the
	// confirmation link lands back in the app.
	EmailRedirectTo string
	Metadata        map[string]string
}

// UpdateUserRequest is a partial profile update. Nil fields are unchanged.
type UpdateUserRequest struct {
	Password *string           `json:"password,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SignUpResult is returned by [Client.SignUp]. Session is nil when the
// service requires email confirmation before issuing tokens.
type SignUpResult struct {
	User    User
	Session *Session
}
