package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.bug.st/serial"
)

// Link defaults.
const (
	DefaultBaudRate       = 1_000_000
	DefaultReconnectDelay = 2 * time.Second
	DefaultReadTimeout    = 100 * time.Millisecond
	DefaultInboundQueue   = 1024
	DefaultOutboundQueue  = 256

	readBufferSize = 4096
	maxLineLength  = 64 * 1024
)

// LinkConfig configures a serial gateway link.
type LinkConfig struct {
	// Port is the serial device path, e.g. /dev/ttyACM0.
	Port string

	// BaudRate defaults to DefaultBaudRate.
	BaudRate int

	// AutoReconnect keeps retrying the port after failures.
	AutoReconnect bool

	// ReconnectDelay is the fixed wait between attempts.
	ReconnectDelay time.Duration

	// ReadTimeout bounds each blocking read so Stop is observed promptly.
	ReadTimeout time.Duration

	InboundQueue  int
	OutboundQueue int
}

func (c *LinkConfig) applyDefaults() {
	if c.BaudRate <= 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.InboundQueue <= 0 {
		c.InboundQueue = DefaultInboundQueue
	}
	if c.OutboundQueue <= 0 {
		c.OutboundQueue = DefaultOutboundQueue
	}
}

// Opener opens the underlying byte stream for a link.
type Opener func(cfg LinkConfig) (io.ReadWriteCloser, error)

// SerialOpener opens cfg.Port as an 8N1 serial port.
func SerialOpener(cfg LinkConfig) (io.ReadWriteCloser, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8, //nolint:mnd // 8N1 framing
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("setting read timeout on %s: %w", cfg.Port, err)
	}
	// Stale bytes from before the open would only produce parse errors.
	_ = port.ResetInputBuffer()
	return port, nil
}

// AvailablePorts lists serial devices present on the system.
func AvailablePorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	return ports, nil
}

// listPorts is AvailablePorts, replaced in tests.
var listPorts = AvailablePorts

// closeOnce wraps a channel that is closed exactly once.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func (c *closeOnce) close() {
	c.once.Do(func() { close(c.ch) })
}

// Link is a newline-delimited JSON connection to the gateway.
//
// It implements both InputPort and OutputPort. All blocking I/O runs on
// internal goroutines; Poll and Send never block.
//
// Thread Safety: All methods are safe for concurrent use.
type Link struct {
	cfg    LinkConfig
	open   Opener
	logger Logger

	inbound  chan RawMessage
	outbound chan []byte

	state   atomic.Int32
	started atomic.Bool

	mu          sync.Mutex
	port        io.ReadWriteCloser
	lastError   string
	lastMessage time.Time

	// connectedOnce is only touched by Start and the run goroutine,
	// which never overlap.
	connectedOnce bool

	attempts    atomic.Uint64
	reconnects  atomic.Uint64
	rxMessages  atomic.Uint64
	rxDropped   atomic.Uint64
	parseErrors atomic.Uint64
	txCommands  atomic.Uint64
	txDropped   atomic.Uint64
	txDrained   atomic.Uint64

	done *closeOnce
	wg   sync.WaitGroup
}

// NewLink creates a link. A nil opener uses SerialOpener and a nil logger
// discards output.
func NewLink(cfg LinkConfig, open Opener, logger Logger) *Link {
	cfg.applyDefaults()
	if open == nil {
		open = SerialOpener
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Link{
		cfg:      cfg,
		open:     open,
		logger:   logger,
		inbound:  make(chan RawMessage, cfg.InboundQueue),
		outbound: make(chan []byte, cfg.OutboundQueue),
		done:     &closeOnce{ch: make(chan struct{})},
	}
}

// Start opens the link and begins the receive loop.
//
// When the first open fails and AutoReconnect is off, Start returns
// ErrOpenFailed. With AutoReconnect on, Start returns nil and keeps
// retrying in the background. Cancelling ctx has the same effect as Stop.
func (l *Link) Start(ctx context.Context) error {
	if l.isClosed() {
		return ErrStopped
	}
	if !l.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	port := l.connect()
	if port == nil && !l.cfg.AutoReconnect {
		return fmt.Errorf("%w: %s: %s", ErrOpenFailed, l.cfg.Port, l.Status().LastError)
	}

	l.wg.Add(1)
	go l.run(ctx, port)

	go func() {
		select {
		case <-ctx.Done():
			_ = l.Stop()
		case <-l.done.ch:
		}
	}()
	return nil
}

// Stop closes the port and waits for the I/O goroutines to exit.
// Queued outbound commands are discarded. Stop is idempotent.
func (l *Link) Stop() error {
	if l.isClosed() {
		return nil
	}
	l.done.close()
	l.state.Store(int32(StateStopped))

	l.mu.Lock()
	if l.port != nil {
		_ = l.port.Close()
	}
	l.mu.Unlock()

	l.wg.Wait()

	if n := l.drainOutbound(); n > 0 {
		l.logger.Debug("discarded queued commands on stop", "count", n)
	}
	l.logger.Info("gateway link stopped", "port", l.cfg.Port)
	return nil
}

// Poll returns the next received message without blocking.
func (l *Link) Poll() (RawMessage, bool) {
	select {
	case msg := <-l.inbound:
		return msg, true
	default:
		return RawMessage{}, false
	}
}

// Send queues cmd for the writer goroutine.
//
// Returns:
//   - error: ErrStopped, ErrNotConnected, ErrQueueFull, or an encoding error
func (l *Link) Send(cmd OutgoingCommand) error {
	if l.isClosed() {
		return ErrStopped
	}
	if l.State() != StateConnected {
		return ErrNotConnected
	}
	line, err := cmd.MarshalLine()
	if err != nil {
		return err
	}
	select {
	case l.outbound <- line:
		return nil
	default:
		l.txDropped.Add(1)
		return ErrQueueFull
	}
}

// IsConnected reports whether the link is in the Connected state.
func (l *Link) IsConnected() bool {
	return l.State() == StateConnected
}

// State returns the current link state.
func (l *Link) State() ConnState {
	return ConnState(l.state.Load())
}

// Status returns a snapshot of the link state and counters.
func (l *Link) Status() Status {
	l.mu.Lock()
	lastError, lastMessage := l.lastError, l.lastMessage
	l.mu.Unlock()

	return Status{
		State:       l.State(),
		Attempts:    l.attempts.Load(),
		Reconnects:  l.reconnects.Load(),
		LastError:   lastError,
		LastMessage: lastMessage,
		RxMessages:  l.rxMessages.Load(),
		RxDropped:   l.rxDropped.Load(),
		ParseErrors: l.parseErrors.Load(),
		TxCommands:  l.txCommands.Load(),
		TxDropped:   l.txDropped.Load(),
		TxDrained:   l.txDrained.Load(),
	}
}

// run owns the connection lifecycle until Stop or a loss without
// AutoReconnect.
func (l *Link) run(ctx context.Context, port io.ReadWriteCloser) {
	defer l.wg.Done()

	for {
		if port == nil {
			if !l.wait(ctx) {
				return
			}
			if port = l.connect(); port == nil {
				continue
			}
		}

		err := l.serve(port)
		port = nil
		if l.isClosed() {
			return
		}
		l.lost(err)
		if !l.cfg.AutoReconnect {
			return
		}
	}
}

// connect makes one open attempt. It returns nil on failure.
func (l *Link) connect() io.ReadWriteCloser {
	l.setState(StateConnecting)
	attempt := l.attempts.Add(1)

	port, err := l.open(l.cfg)
	if err != nil {
		l.setError(err)
		l.setState(StateDisconnected)
		l.logger.Warn("gateway open failed",
			"port", l.cfg.Port,
			"attempt", attempt,
			"error", err,
		)
		if attempt == 1 {
			l.logAvailablePorts()
		}
		return nil
	}

	l.mu.Lock()
	if l.isClosed() {
		l.mu.Unlock()
		_ = port.Close()
		return nil
	}
	l.port = port
	l.mu.Unlock()

	if l.connectedOnce {
		l.reconnects.Add(1)
	}
	l.connectedOnce = true
	l.setState(StateConnected)

	l.logger.Info("gateway connected",
		"port", l.cfg.Port,
		"attempt", attempt,
		"reconnects", l.reconnects.Load(),
	)
	return port
}

// logAvailablePorts lists the serial devices that are present, which
// usually shows a misnamed port at a glance.
func (l *Link) logAvailablePorts() {
	ports, err := listPorts()
	if err != nil {
		l.logger.Debug("listing serial ports failed", "error", err)
		return
	}
	l.logger.Info("serial ports present", "ports", ports)
}

// serve runs the reader on this goroutine and a writer alongside it until
// either side fails or the link is stopped.
func (l *Link) serve(port io.ReadWriteCloser) error {
	connDone := make(chan struct{})
	writeErr := make(chan error, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.writeLoop(port, connDone, writeErr)
	}()

	err := l.readLoop(port)
	select {
	case werr := <-writeErr:
		err = werr
	default:
	}

	close(connDone)
	_ = port.Close()
	wg.Wait()

	l.mu.Lock()
	if l.port == port {
		l.port = nil
	}
	l.mu.Unlock()
	return err
}

func (l *Link) readLoop(port io.Reader) error {
	buf := make([]byte, readBufferSize)
	var pending []byte

	for {
		if l.isClosed() {
			return nil
		}

		n, err := port.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending = l.consumeLines(pending)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("gateway closed the stream: %w", err)
			}
			return err
		}
		// n == 0 with no error is a read timeout.
	}
}

// consumeLines handles every complete line in pending and returns the
// unconsumed tail.
func (l *Link) consumeLines(pending []byte) []byte {
	for {
		i := bytes.IndexByte(pending, '\n')
		if i < 0 {
			break
		}
		l.handleLine(pending[:i])
		pending = pending[i+1:]
	}

	if len(pending) > maxLineLength {
		l.parseErrors.Add(1)
		l.logger.Warn("discarding oversized gateway line", "bytes", len(pending))
		return nil
	}
	// Compact so the backing array does not grow without bound.
	return append([]byte(nil), pending...)
}

func (l *Link) handleLine(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	msg, err := ParseEnvelope(line)
	if err != nil {
		l.parseErrors.Add(1)
		l.logger.Debug("invalid gateway line", "error", err)
		return
	}

	now := time.Now().UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	l.mu.Lock()
	l.lastMessage = now
	l.mu.Unlock()

	select {
	case l.inbound <- msg:
		l.rxMessages.Add(1)
	default:
		l.rxDropped.Add(1)
	}
}

func (l *Link) writeLoop(port io.WriteCloser, connDone <-chan struct{}, writeErr chan<- error) {
	for {
		select {
		case <-connDone:
			return
		case line := <-l.outbound:
			if _, err := port.Write(line); err != nil {
				l.txDrained.Add(1)
				writeErr <- fmt.Errorf("writing to gateway: %w", err)
				// Unblocks the reader.
				_ = port.Close()
				return
			}
			l.txCommands.Add(1)
		}
	}
}

// lost records a connection loss and discards queued commands, which are
// stale by the time a new connection exists.
func (l *Link) lost(err error) {
	if err == nil {
		err = errors.New("connection closed")
	}
	l.setError(err)
	l.setState(StateDisconnected)
	drained := l.drainOutbound()

	l.logger.Warn("gateway connection lost",
		"port", l.cfg.Port,
		"error", err,
		"drained", drained,
		"auto_reconnect", l.cfg.AutoReconnect,
	)
}

// wait sleeps for the reconnect delay. It returns false when the link is
// stopped or ctx is cancelled first.
func (l *Link) wait(ctx context.Context) bool {
	timer := time.NewTimer(l.cfg.ReconnectDelay)
	defer timer.Stop()

	select {
	case <-l.done.ch:
		return false
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (l *Link) drainOutbound() int {
	n := 0
	for {
		select {
		case <-l.outbound:
			n++
			l.txDrained.Add(1)
		default:
			return n
		}
	}
}

// setState moves to s unless the link is already stopped.
func (l *Link) setState(s ConnState) {
	for {
		cur := l.state.Load()
		if ConnState(cur) == StateStopped {
			return
		}
		if l.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (l *Link) setError(err error) {
	l.mu.Lock()
	l.lastError = err.Error()
	l.mu.Unlock()
}

func (l *Link) isClosed() bool {
	select {
	case <-l.done.ch:
		return true
	default:
		return false
	}
}
