package session

import (
	"errors"
	"net/http"
)

// Sentinel errors. Use errors.Is to check.
var (
	// ErrSessionExpired reports a forced logout: the access token was
	// rejected and the session could not be refreshed.
	ErrSessionExpired = errors.New("session: session expired")

	// ErrNoRefreshToken means the store holds no refresh token, so a
	// refresh was not attempted.
	ErrNoRefreshToken = errors.New("session: no refresh token")

	// ErrSuperseded means the session was signed out or replaced by a new
	// login while a refresh was in flight; the refresh result was dropped.
	ErrSuperseded = errors.New("session: superseded during refresh")
)

// statusCoder is satisfied by API errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

// IsUnauthorized reports whether err, or any error it wraps, is an HTTP 401
// from the API. Other 4xx and 5xx statuses are never auth failures.
func IsUnauthorized(err error) bool {
	var sc statusCoder
	if !errors.As(err, &sc) {
		return false
	}

	return sc.HTTPStatus() == http.StatusUnauthorized
}
