package provider

import (
	"errors"
	"fmt"
)

// ErrNotInitialized is returned when an operation runs before [New]
// configured the client with a base URL.
var ErrNotInitialized = errors.New("provider client not initialized")

// ErrNoSession is returned by session-bound operations when the client holds
// no session.
var ErrNoSession = errors.New("no active session")

// APIError is a non-2xx response from the credential service.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("credential service returned status %d", e.Status)
	}
	return fmt.Sprintf("credential service returned status %d: %s", e.Status, e.Message)
}

// IsAPIError unwraps err into an [APIError] if one is present.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
