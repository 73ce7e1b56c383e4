package transport

import (
	"context"
	"sync"
)

// MockInput is an in-memory InputPort. Messages injected with Inject are
// returned by Poll in order.
type MockInput struct {
	mu        sync.Mutex
	queue     []RawMessage
	connected bool
	started   bool
}

// NewMockInput creates a connected mock input.
func NewMockInput() *MockInput {
	return &MockInput{connected: true}
}

// Inject appends messages to the queue.
func (m *MockInput) Inject(msgs ...RawMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, msgs...)
}

// InjectLine parses a gateway line and appends it.
func (m *MockInput) InjectLine(line string) error {
	msg, err := ParseEnvelope([]byte(line))
	if err != nil {
		return err
	}
	m.Inject(msg)
	return nil
}

// SetConnected sets the value returned by IsConnected.
func (m *MockInput) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// Pending returns the number of queued messages.
func (m *MockInput) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Start implements InputPort.
func (m *MockInput) Start(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Stop implements InputPort.
func (m *MockInput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = false
	return nil
}

// Poll implements InputPort.
func (m *MockInput) Poll() (RawMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return RawMessage{}, false
	}
	msg := m.queue[0]
	m.queue = m.queue[1:]
	return msg, true
}

// IsConnected implements InputPort.
func (m *MockInput) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// MockOutput is an OutputPort that records commands.
type MockOutput struct {
	mu        sync.Mutex
	sent      []OutgoingCommand
	connected bool
	err       error
}

// NewMockOutput creates a connected mock output.
func NewMockOutput() *MockOutput {
	return &MockOutput{connected: true}
}

// Send records cmd, or returns the configured error.
func (m *MockOutput) Send(cmd OutgoingCommand) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if !m.connected {
		return ErrNotConnected
	}
	m.sent = append(m.sent, cmd)
	return nil
}

// IsConnected implements OutputPort.
func (m *MockOutput) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected sets the connection flag.
func (m *MockOutput) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

// SetError makes every Send fail with err. Nil clears it.
func (m *MockOutput) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Sent returns a copy of the recorded commands.
func (m *MockOutput) Sent() []OutgoingCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]OutgoingCommand, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentOn returns the recorded commands for one channel.
func (m *MockOutput) SentOn(ch Channel) []OutgoingCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OutgoingCommand
	for _, c := range m.sent {
		if c.Channel == ch {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (m *MockOutput) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}
