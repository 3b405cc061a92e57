package havenwatch

import "context"

// AccountStatus represents the lifecycle state of a user account.
type AccountStatus uint8

const (
	// AccountActive is a confirmed, usable account.
	AccountActive AccountStatus = iota
	// AccountPendingConfirmation is an account awaiting email confirmation.
	AccountPendingConfirmation
	// AccountDisabled is an account that can no longer sign in.
	AccountDisabled
)

// UserRecord is the full account record held by a [UserProvider]. It carries
// the credential hash and is never serialized to callers; use [UserRecord.Public].
type UserRecord struct {
	UserID       string
	Email        string
	PasswordHash string
	Status       AccountStatus
	Metadata     map[string]string
	CreatedAt    int64
}

// User is the caller-facing view of an account. The password hash is stripped.
type User struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Public returns the caller-facing view of the record.
func (r UserRecord) Public() User {
	return User{
		ID:       r.UserID,
		Email:    r.Email,
		Metadata: r.Metadata,
	}
}

// CreateUserInput is the input for [UserProvider.CreateUser].
type CreateUserInput struct {
	Email        string
	PasswordHash string
	Status       AccountStatus
	Metadata     map[string]string
}

// UserProvider is the interface the engine uses to reach the user record
// store. Implementations must return [ErrEmailExists] from CreateUser when the
// email is already registered, and [ErrUserNotFound] from lookups that miss.
type UserProvider interface {
	GetUserByEmail(ctx context.Context, email string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
	UpdateMetadata(ctx context.Context, userID string, metadata map[string]string) (UserRecord, error)
	UpdateStatus(ctx context.Context, userID string, status AccountStatus) (UserRecord, error)
}

// TokenPair bundles an access token with its rotating refresh token.
// ExpiresAt is the access token's expiry as a Unix timestamp.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64
}

// SignInResult is returned by [Engine.SignIn] and [Engine.ExchangeRecoveryToken].
type SignInResult struct {
	Tokens TokenPair
	User   User

	sessionID string
	recovery  bool
	expiresAt int64
}

// SessionID returns the ID of the session backing the token pair.
func (r *SignInResult) SessionID() string { return r.sessionID }

func (r *SignInResult) sessionInfo() *SessionInfo {
	return &SessionInfo{
		SessionID: r.sessionID,
		UserID:    r.User.ID,
		Email:     r.User.Email,
		Recovery:  r.recovery,
		ExpiresAt: r.expiresAt,
	}
}

// SignUpRequest is the input for [Engine.SignUp].
type SignUpRequest struct {
	Email    string
	Password string
	Metadata map[string]string
}

// SignUpResult is returned by [Engine.SignUp]. When email confirmation is
// required the account exists but no tokens are issued; ConfirmationToken is
// the challenge the caller must deliver to the user's mailbox.
type SignUpResult struct {
	User                 User
	ConfirmationRequired bool
	ConfirmationToken    string
	Tokens               *TokenPair
}

// UpdateUserRequest is the input for [Engine.UpdateUser]. Nil fields are left
// unchanged.
type UpdateUserRequest struct {
	Password *string
	Metadata map[string]string
}

// AuthResult identifies the caller behind a validated access token.
type AuthResult struct {
	UserID    string
	Email     string
	SessionID string
	// Recovery marks a temporary session established by a password-reset
	// deep link. Such sessions may only update the password.
	Recovery bool
}
