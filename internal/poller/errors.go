package poller

import "errors"

var (
	// ErrInvalidConfig is returned by New when a required field is missing.
	ErrInvalidConfig = errors.New("poller: invalid config")

	// errSourcePanic wraps a panic recovered from a source call.
	errSourcePanic = errors.New("poller: source panicked")
)
