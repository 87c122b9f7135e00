package hue

import "errors"

var (
	// ErrNotConfigured is returned when fetching without bridge credentials.
	ErrNotConfigured = errors.New("hue: not configured")

	// ErrBridgeUnavailable is returned when the bridge request fails.
	ErrBridgeUnavailable = errors.New("hue: bridge unavailable")
)
