package nanoleaf

import "errors"

var (
	// ErrPairingNotFound is returned when a device ID has no pairing.
	ErrPairingNotFound = errors.New("nanoleaf: pairing not found")

	// ErrInvalidPairing is returned when a pairing fails validation.
	ErrInvalidPairing = errors.New("nanoleaf: invalid pairing")

	// ErrPairingRefused is returned when the controller is not in pairing
	// mode (HTTP 403 from /api/v1/new).
	ErrPairingRefused = errors.New("nanoleaf: pairing refused, hold the power button first")

	// ErrAPI is returned for unexpected controller responses.
	ErrAPI = errors.New("nanoleaf: api error")
)
