package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID is not in the cache.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrInvalidSnapshot is returned when a snapshot cannot be persisted
	// (empty ID, unknown vendor).
	ErrInvalidSnapshot = errors.New("device: invalid snapshot")
)
