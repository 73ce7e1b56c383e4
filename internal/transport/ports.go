package transport

import (
	"context"
	"time"
)

// Logger defines the logging interface used by transports.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// InputPort delivers inbound messages.
type InputPort interface {
	// Start begins receiving. Blocking I/O runs on internal goroutines.
	Start(ctx context.Context) error

	// Stop ends receiving and interrupts any blocking read.
	Stop() error

	// Poll returns the next message without blocking.
	Poll() (RawMessage, bool)

	// IsConnected reports whether the source is delivering messages.
	IsConnected() bool
}

// OutputPort accepts outbound commands.
type OutputPort interface {
	// Send queues or writes cmd. It never blocks on I/O.
	Send(cmd OutgoingCommand) error

	// IsConnected reports whether commands can currently be delivered.
	IsConnected() bool
}

// ConnState is a link state.
type ConnState int32

// Link states.
const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
	StateStopped
)

// String returns the lower-case state name.
func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Status is a snapshot of a port's connection state and counters.
type Status struct {
	State       ConnState `json:"state"`
	Attempts    uint64    `json:"attempts"`
	Reconnects  uint64    `json:"reconnects"`
	LastError   string    `json:"last_error,omitempty"`
	LastMessage time.Time `json:"last_message"`

	RxMessages  uint64 `json:"rx_messages"`
	RxDropped   uint64 `json:"rx_dropped"`
	ParseErrors uint64 `json:"parse_errors"`
	TxCommands  uint64 `json:"tx_commands"`
	TxDropped   uint64 `json:"tx_dropped"`
	TxDrained   uint64 `json:"tx_drained"`
}

// StatusReporter is implemented by ports that expose a Status.
type StatusReporter interface {
	Status() Status
}
