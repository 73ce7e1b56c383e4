package egress

import "errors"

// Domain errors for the egress package.
var (
	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("egress: already started")
)
