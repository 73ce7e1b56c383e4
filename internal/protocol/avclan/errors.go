package avclan

import "errors"

// Domain errors for the AVC-LAN codec.
var (
	// ErrInvalidFrame is returned when a gateway payload cannot be parsed
	// into a frame.
	ErrInvalidFrame = errors.New("avclan: invalid frame")

	// ErrInvalidAddress is returned when an address is outside 0x000-0xFFF.
	ErrInvalidAddress = errors.New("avclan: invalid address")

	// ErrUnknownCommand is returned when encoding a command kind that has
	// no frame layout.
	ErrUnknownCommand = errors.New("avclan: unknown command")
)
