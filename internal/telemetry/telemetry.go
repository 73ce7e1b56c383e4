package telemetry

import (
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// Logger defines the logging interface used by telemetry components.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the part of the state store telemetry reads.
type Store interface {
	Subscribe(slices state.Slices, fn func(state.Change)) func()
	State() state.AppState
}
