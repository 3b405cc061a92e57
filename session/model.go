// Package session persists HavenWatch sessions in Redis. A session is the
// server-side half of a token pair: the access token references it by ID and
// the refresh token proves knowledge of a secret whose hash rotates on every
// refresh.
package session

// Session is the stored session record. RefreshHash is the SHA-256 of the
// current refresh secret; the secret itself is never persisted.
type Session struct {
	SessionID string
	UserID    string
	Email     string
	// Recovery marks a temporary session established by a password-reset
	// deep link.
	Recovery    bool
	RefreshHash [32]byte
	CreatedAt   int64
	ExpiresAt   int64
}
