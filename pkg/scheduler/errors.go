package scheduler

import "errors"

var (
	// ErrQueueFull is returned when the command queue cannot take more commands.
	ErrQueueFull = errors.New("scheduler: command queue full")

	// ErrInvalidIndex is returned for toggles addressing no behavior.
	ErrInvalidIndex = errors.New("scheduler: invalid behavior index")

	// ErrAlreadyStarted is returned by Register after Run has begun.
	ErrAlreadyStarted = errors.New("scheduler: already started")
)
