package vehicle

import "errors"

// Domain errors for the vehicle state store.
// Results carry the wrapped error so callers can test with errors.Is.
var (
	// ErrUnknownCategory is returned when an action's prefix names no subsystem.
	ErrUnknownCategory = errors.New("unknown action category")

	// ErrUnknownAction is returned when a subsystem does not recognise the action.
	ErrUnknownAction = errors.New("unknown action")

	// ErrInvalidColor is returned for an ambient colour outside the allow-list.
	ErrInvalidColor = errors.New("invalid color")

	// ErrInvalidSource is returned for a media source outside the allow-list.
	ErrInvalidSource = errors.New("invalid source")

	// ErrInvalidSeat is returned when the seat is neither driver nor passenger.
	ErrInvalidSeat = errors.New("invalid seat")

	// ErrInvalidPosition is returned when a seat position is not a mapping
	// of numeric height, tilt and lumbar values.
	ErrInvalidPosition = errors.New("invalid position format")

	// ErrInvalidPreset is returned for an unknown seat preset.
	ErrInvalidPreset = errors.New("invalid preset")

	// ErrInvalidStation is returned when a radio station is not a non-empty string.
	ErrInvalidStation = errors.New("invalid station")

	// ErrHandlerPanic wraps a recovered panic from an action handler.
	ErrHandlerPanic = errors.New("action handler failed")
)
