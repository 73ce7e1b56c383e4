package can

import "errors"

// Domain errors for the CAN codec.
var (
	// ErrInvalidFrame is returned when a gateway payload or ISO-TP frame is
	// malformed.
	ErrInvalidFrame = errors.New("can: invalid frame")

	// ErrUnknownID is returned for broadcast IDs without a decoder.
	ErrUnknownID = errors.New("can: unknown id")

	// ErrShortFrame is returned when a known ID carries too few bytes.
	ErrShortFrame = errors.New("can: frame too short")

	// ErrUnexpectedFrame is returned for a consecutive frame with no
	// assembly in progress.
	ErrUnexpectedFrame = errors.New("can: unexpected consecutive frame")

	// ErrOutOfSequence is returned when a consecutive frame skips or
	// repeats a sequence number. The assembly is discarded.
	ErrOutOfSequence = errors.New("can: consecutive frame out of sequence")

	// ErrAssemblyTimeout is returned when a continuation arrives after the
	// assembly deadline. The assembly is discarded.
	ErrAssemblyTimeout = errors.New("can: multi-frame assembly timed out")

	// ErrUnknownPID is returned for diagnostic responses without a table
	// entry.
	ErrUnknownPID = errors.New("can: unknown pid")

	// ErrNegativeResponse is returned when an ECU rejects a request.
	ErrNegativeResponse = errors.New("can: negative response")
)
