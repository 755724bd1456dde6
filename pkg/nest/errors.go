package nest

import (
	"errors"
	"fmt"
)

// AuthError is returned when the login endpoint answers with a non-200 status.
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("nest login: status %d", e.StatusCode)
}

// FetchError is returned when the user document endpoint answers with a
// non-200 status.
type FetchError struct {
	StatusCode int
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("nest fetch: status %d", e.StatusCode)
}

// ErrSessionExpired is returned when a fresh login already carries an expiry
// in the past. The fetch is skipped and the next window logs in again.
var ErrSessionExpired = errors.New("nest login: session already expired")
