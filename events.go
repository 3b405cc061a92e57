package havenwatch

import (
	"context"
	"time"
)

// EventKind enumerates the auth state changes the engine publishes.
type EventKind uint8

const (
	// EventSignedIn fires when a session is created by sign-in or sign-up.
	EventSignedIn EventKind = iota
	// EventSignedOut fires when a session is destroyed by sign-out.
	EventSignedOut
	// EventPasswordRecovery fires when a recovery token is exchanged for a
	// temporary session.
	EventPasswordRecovery
	// EventTokenRefreshed fires when a refresh token is rotated.
	EventTokenRefreshed
)

// String returns the wire name of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventPasswordRecovery:
		return "password_recovery"
	case EventTokenRefreshed:
		return "token_refreshed"
	default:
		return "unknown"
	}
}

// SessionInfo is the session view carried by an [Event]. Signed-out events
// carry a nil session.
type SessionInfo struct {
	SessionID string
	UserID    string
	Email     string
	Recovery  bool
	ExpiresAt int64
}

// Event is a single auth state change. Events are transient: consumed once by
// each subscriber, never stored.
type Event struct {
	Kind    EventKind
	Session *SessionInfo
	At      time.Time
}

// EventSink receives auth events from the engine. Emit must not block for
// long; slow sinks cause events to be dropped when DropIfFull is set.
type EventSink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink discards every event.
type NoOpSink struct{}

// Emit discards the event.
func (NoOpSink) Emit(context.Context, Event) {}
