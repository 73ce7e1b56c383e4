package transport

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"sync"
	"sync/atomic"
)

// UDPTarget is one satellite listener.
type UDPTarget struct {
	// Address is host:port, e.g. localhost:5110.
	Address string

	// Channels limits the target to these satellite channels. Empty means
	// every satellite channel.
	Channels []Channel
}

// UDPConfig configures a UDP satellite output.
type UDPConfig struct {
	Targets []UDPTarget
}

type udpTarget struct {
	addr     *net.UDPAddr
	channels []Channel
}

func (t udpTarget) wants(ch Channel) bool {
	return len(t.channels) == 0 || slices.Contains(t.channels, ch)
}

// UDPOutput mirrors satellite commands to local listeners as gateway
// lines, one datagram per command. Bus commands are not forwarded.
//
// Thread Safety: All methods are safe for concurrent use.
type UDPOutput struct {
	targets []udpTarget
	logger  Logger

	mu     sync.Mutex
	conn   *net.UDPConn
	closed bool

	sent    atomic.Uint64
	skipped atomic.Uint64
	failed  atomic.Uint64
}

// NewUDPOutput resolves the targets and opens an unbound UDP socket.
//
// Parameters:
//   - cfg: Targets to send to
//   - logger: Optional logger, nil discards output
//
// Returns:
//   - *UDPOutput: Ready to Send
//   - error: ErrNoTargets, or a resolve or socket error
func NewUDPOutput(cfg UDPConfig, logger Logger) (*UDPOutput, error) {
	if logger == nil {
		logger = noopLogger{}
	}
	if len(cfg.Targets) == 0 {
		return nil, ErrNoTargets
	}

	o := &UDPOutput{logger: logger}
	for _, t := range cfg.Targets {
		addr, err := net.ResolveUDPAddr("udp", t.Address)
		if err != nil {
			return nil, fmt.Errorf("resolving udp target %q: %w", t.Address, err)
		}
		for _, ch := range t.Channels {
			if !ch.IsSatellite() {
				return nil, fmt.Errorf("udp target %q: %s is not a satellite channel", t.Address, ch)
			}
		}
		o.targets = append(o.targets, udpTarget{addr: addr, channels: slices.Clone(t.Channels)})
		logger.Info("udp target added", "address", addr.String(), "channels", len(t.Channels))
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return nil, fmt.Errorf("opening udp socket: %w", err)
	}
	o.conn = conn
	return o, nil
}

// Send writes cmd to every target that takes its channel. Commands for
// non-satellite channels are skipped without error.
func (o *UDPOutput) Send(cmd OutgoingCommand) error {
	if !cmd.Channel.IsSatellite() {
		o.skipped.Add(1)
		return nil
	}
	line, err := cmd.MarshalLine()
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrStopped
	}

	var errs []error
	delivered := false
	for _, t := range o.targets {
		if !t.wants(cmd.Channel) {
			continue
		}
		if _, err := o.conn.WriteToUDP(line, t.addr); err != nil {
			o.failed.Add(1)
			errs = append(errs, fmt.Errorf("udp %s: %w", t.addr, err))
			continue
		}
		delivered = true
	}
	if delivered {
		o.sent.Add(1)
	} else if len(errs) == 0 {
		o.skipped.Add(1)
	}
	return errors.Join(errs...)
}

// IsConnected reports whether the socket is open.
func (o *UDPOutput) IsConnected() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.closed
}

// Close releases the socket. Later sends return ErrStopped.
func (o *UDPOutput) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.conn.Close()
}

// Sent returns the number of commands delivered to at least one target.
func (o *UDPOutput) Sent() uint64 { return o.sent.Load() }

// Skipped returns the number of commands no target took.
func (o *UDPOutput) Skipped() uint64 { return o.skipped.Load() }

// Errors returns the number of failed datagram writes.
func (o *UDPOutput) Errors() uint64 { return o.failed.Load() }
