package vision

import "errors"

var (
	// ErrEmptyFrame is returned when a frame carries no pixels.
	ErrEmptyFrame = errors.New("vision: empty frame")

	// ErrTemplateNotFound is returned when a target has no loaded template asset.
	ErrTemplateNotFound = errors.New("vision: template not found")

	// ErrChannelMismatch is returned when frame and template disagree on channel
	// layout after normalization.
	ErrChannelMismatch = errors.New("vision: channel mismatch")

	// ErrTemplateTooLarge is returned when a template does not fit inside the frame.
	ErrTemplateTooLarge = errors.New("vision: template larger than frame")

	// ErrMatchTimeout is returned when the matcher exceeds its latency budget.
	ErrMatchTimeout = errors.New("vision: match timed out")

	// ErrUnknownTarget is returned for identifiers outside the target catalog.
	ErrUnknownTarget = errors.New("vision: unknown target")
)
