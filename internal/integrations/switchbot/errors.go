package switchbot

import "errors"

var (
	// ErrNotConfigured is returned when fetching without token and secret.
	ErrNotConfigured = errors.New("switchbot: not configured")

	// ErrUnauthorized is returned when the cloud rejects the credentials.
	ErrUnauthorized = errors.New("switchbot: unauthorized")

	// ErrAPI is returned for non-success responses.
	ErrAPI = errors.New("switchbot: api error")
)
