package state

import "errors"

// Domain errors for the state package.
var (
	// ErrUnknownSlice is returned when a slice name cannot be parsed.
	ErrUnknownSlice = errors.New("state: unknown slice")

	// ErrUnknownEnum is returned when an enum value cannot be parsed.
	ErrUnknownEnum = errors.New("state: unknown enum value")
)
