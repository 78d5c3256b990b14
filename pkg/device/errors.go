package device

import "errors"

var (
	// ErrNotConnected is returned when no device answers on the configured
	// serial. It is fatal at startup.
	ErrNotConnected = errors.New("device: not connected")

	// ErrEmptyCapture is returned when screencap produced no data.
	ErrEmptyCapture = errors.New("device: empty capture")

	// ErrOutOfBounds is returned for taps at negative coordinates.
	ErrOutOfBounds = errors.New("device: tap out of bounds")
)
