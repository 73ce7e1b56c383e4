package twin

import "errors"

// Domain errors for the twin package.
var (
	// ErrQueueFull is returned by Enqueue when the remote queue is full.
	ErrQueueFull = errors.New("twin: remote action queue full")

	// ErrInvalidMode is returned for an unknown run mode.
	ErrInvalidMode = errors.New("twin: invalid mode")

	// ErrNotStarted is returned when stopping a twin that never started.
	ErrNotStarted = errors.New("twin: not started")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("twin: already started")
)
