package ingress

import "errors"

// Domain errors for the ingress package.
var (
	// ErrInvalidPayload is returned when a message payload cannot be read.
	ErrInvalidPayload = errors.New("ingress: invalid payload")

	// ErrNotSatellite is returned when registering a handler below the
	// satellite channel range.
	ErrNotSatellite = errors.New("ingress: channel is not a satellite channel")

	// ErrDuplicateHandler is returned when a channel already has a handler.
	ErrDuplicateHandler = errors.New("ingress: satellite handler already registered")

	// ErrNoHandler is returned for satellite messages on unregistered
	// channels.
	ErrNoHandler = errors.New("ingress: no satellite handler")
)
