package command

import "errors"

var (
	// ErrUnknownCommand is returned for a command name outside the catalogue.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrInvalidParameter is returned when a parameter is missing or has
	// the wrong type.
	ErrInvalidParameter = errors.New("command: invalid parameter")
)
