package transport

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// MultiOutput sends every command to each wrapped output.
type MultiOutput struct {
	outputs []OutputPort
}

// NewMultiOutput wraps outputs. Nil entries are skipped.
func NewMultiOutput(outputs ...OutputPort) *MultiOutput {
	m := &MultiOutput{}
	for _, o := range outputs {
		if o != nil {
			m.outputs = append(m.outputs, o)
		}
	}
	return m
}

// Send forwards cmd to every output and joins their errors.
func (m *MultiOutput) Send(cmd OutgoingCommand) error {
	var errs []error
	for i, o := range m.outputs {
		if err := o.Send(cmd); err != nil {
			errs = append(errs, fmt.Errorf("output %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// IsConnected reports whether any output is connected.
func (m *MultiOutput) IsConnected() bool {
	for _, o := range m.outputs {
		if o.IsConnected() {
			return true
		}
	}
	return false
}

// LogOutput logs commands instead of sending them. Used for dry runs and
// alongside a replay.
type LogOutput struct {
	logger Logger
	sent   atomic.Uint64
}

// NewLogOutput creates a log output. A nil logger discards output.
func NewLogOutput(logger Logger) *LogOutput {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogOutput{logger: logger}
}

// Send logs cmd at debug level.
func (o *LogOutput) Send(cmd OutgoingCommand) error {
	line, err := cmd.MarshalLine()
	if err != nil {
		return err
	}
	o.sent.Add(1)
	o.logger.Debug("gateway command",
		"channel", cmd.Channel.String(),
		"cmd", cmd.Command,
		"line", string(line[:len(line)-1]),
	)
	return nil
}

// IsConnected always reports true.
func (o *LogOutput) IsConnected() bool { return true }

// Sent returns the number of logged commands.
func (o *LogOutput) Sent() uint64 { return o.sent.Load() }
