package transport

import "errors"

// Domain errors for the transport package.
var (
	// ErrNotConnected is returned by Send while the link is down.
	ErrNotConnected = errors.New("transport: not connected")

	// ErrQueueFull is returned by Send when the outbound queue is full.
	ErrQueueFull = errors.New("transport: outbound queue full")

	// ErrStopped is returned when using a stopped port.
	ErrStopped = errors.New("transport: stopped")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrOpenFailed is returned when the link cannot be opened and
	// auto-reconnect is disabled.
	ErrOpenFailed = errors.New("transport: open failed")

	// ErrInvalidEnvelope is returned for malformed gateway lines.
	ErrInvalidEnvelope = errors.New("transport: invalid envelope")

	// ErrNoTargets is returned when a UDP output has nowhere to send.
	ErrNoTargets = errors.New("transport: no udp targets")
)
