package egress

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/can"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// PollerStats holds diagnostic poller counters.
type PollerStats struct {
	Requests     uint64 `json:"requests"`
	SendFailures uint64 `json:"send_failures"`
	Skipped      uint64 `json:"skipped"`
}

// DiagnosticPoller requests diagnostic PIDs round-robin, one per interval.
//
// Poll is driven by the app tick; it never blocks.
type DiagnosticPoller struct {
	out      transport.OutputPort
	interval time.Duration
	logger   Logger

	mu   sync.Mutex
	pids []can.PID
	next int
	last time.Time

	requests     atomic.Uint64
	sendFailures atomic.Uint64
	skipped      atomic.Uint64
}

// NewDiagnosticPoller creates a poller over every known PID. A zero or
// negative interval disables polling.
func NewDiagnosticPoller(out transport.OutputPort, interval time.Duration, logger Logger) *DiagnosticPoller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &DiagnosticPoller{
		out:      out,
		interval: interval,
		logger:   logger,
		pids:     can.PIDs(),
	}
}

// Poll sends the next request when the interval has elapsed.
//
// Returns:
//   - bool: True when a request was sent
func (p *DiagnosticPoller) Poll(now time.Time) bool {
	if p.interval <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.pids) == 0 || (!p.last.IsZero() && now.Sub(p.last) < p.interval) {
		return false
	}
	if !p.out.IsConnected() {
		p.skipped.Add(1)
		return false
	}

	pid := p.pids[p.next]
	p.next = (p.next + 1) % len(p.pids)
	p.last = now

	frame, err := can.EncodeRequest(pid)
	if err != nil {
		p.sendFailures.Add(1)
		p.logger.Warn("cannot encode diagnostic request", "pid", pid.String(), "error", err)
		return false
	}

	err = p.out.Send(transport.OutgoingCommand{
		Channel: transport.ChannelCAN,
		Command: transport.CommandSend,
		Payload: frame,
	})
	if err != nil {
		p.sendFailures.Add(1)
		p.logger.Debug("diagnostic request not sent", "pid", pid.String(), "error", err)
		return false
	}
	p.requests.Add(1)
	return true
}

// Stats returns a snapshot of the counters.
func (p *DiagnosticPoller) Stats() PollerStats {
	return PollerStats{
		Requests:     p.requests.Load(),
		SendFailures: p.sendFailures.Load(),
		Skipped:      p.skipped.Load(),
	}
}
