package settings

import "errors"

// Domain errors for the settings package.
var (
	// ErrInvalidValue is returned when a stored value cannot be parsed.
	ErrInvalidValue = errors.New("settings: invalid stored value")
)
