package ingress

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/avclan"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/can"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// DefaultMaxPerTick bounds the messages handled by one ProcessPending call.
const DefaultMaxPerTick = 100

// Logger defines the logging interface used by the controller.
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

// Store is the subset of the state store used by ingress.
type Store interface {
	Dispatch(a state.Action) state.Slices
	State() state.AppState
}

// Config configures a Controller.
type Config struct {
	// MaxPerTick defaults to DefaultMaxPerTick.
	MaxPerTick int

	// AssemblyTimeout bounds ISO-TP reassembly. Defaults to
	// can.DefaultAssemblyTimeout.
	AssemblyTimeout time.Duration
}

// Stats holds ingress counters.
type Stats struct {
	Received      uint64    `json:"received"`
	Processed     uint64    `json:"processed"`
	System        uint64    `json:"system"`
	CAN           uint64    `json:"can"`
	AVC           uint64    `json:"avc"`
	Satellite     uint64    `json:"satellite"`
	Unknown       uint64    `json:"unknown"`
	DecodeErrors  uint64    `json:"decode_errors"`
	OutOfSpec     uint64    `json:"out_of_spec"`
	Filtered      uint64    `json:"filtered"`
	Repeats       uint64    `json:"repeats"`
	Diagnostics   uint64    `json:"diagnostics"`
	FlowControls  uint64    `json:"flow_controls"`
	Actions       uint64    `json:"actions"`
	LastMessageAt time.Time `json:"last_message_at"`
}

// Controller routes inbound messages to decoders and dispatches the
// resulting actions.
//
// ProcessPending must be called from a single goroutine (the app loop).
// Stats and RegisterSatellite are safe for concurrent use.
type Controller struct {
	store  Store
	input  transport.InputPort
	logger Logger
	cfg    Config
	now    func() time.Time

	assembler *can.Assembler
	flow      transport.OutputPort

	mu         sync.RWMutex
	satellites map[transport.Channel]SatelliteHandler

	// lastAVC is the last frame delivered per route. Only ProcessPending
	// touches it.
	lastAVC map[avclan.Pair]avclan.Frame

	received     atomic.Uint64
	processed    atomic.Uint64
	system       atomic.Uint64
	canMsgs      atomic.Uint64
	avcMsgs      atomic.Uint64
	satMsgs      atomic.Uint64
	unknown      atomic.Uint64
	decodeErrors atomic.Uint64
	outOfSpec    atomic.Uint64
	filtered     atomic.Uint64
	repeats      atomic.Uint64
	diagnostics  atomic.Uint64
	flowControls atomic.Uint64
	actions      atomic.Uint64
	lastMessage  atomic.Int64
}

// New creates an ingress controller reading from input.
//
// Parameters:
//   - store: Store receiving hardware-origin actions
//   - input: Port to drain
//   - cfg: Limits; zero values select defaults
//   - logger: Logger; nil discards output
func New(store Store, input transport.InputPort, cfg Config, logger Logger) *Controller {
	if cfg.MaxPerTick <= 0 {
		cfg.MaxPerTick = DefaultMaxPerTick
	}
	if cfg.AssemblyTimeout <= 0 {
		cfg.AssemblyTimeout = can.DefaultAssemblyTimeout
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		store:      store,
		input:      input,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
		assembler:  can.NewAssembler(cfg.AssemblyTimeout),
		satellites: make(map[transport.Channel]SatelliteHandler),
		lastAVC:    make(map[avclan.Pair]avclan.Frame),
	}
}

// SetFlowControlOutput sets the port used to answer ISO-TP first frames.
// Without it, multi-frame responses only complete when the ECU sends
// unsolicited continuations.
func (c *Controller) SetFlowControlOutput(out transport.OutputPort) {
	c.flow = out
}

// RegisterSatellite installs the handler for a satellite channel.
func (c *Controller) RegisterSatellite(ch transport.Channel, h SatelliteHandler) error {
	if !ch.IsSatellite() {
		return fmt.Errorf("%w: %d", ErrNotSatellite, int(ch))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.satellites[ch]; exists {
		return fmt.Errorf("%w: %d", ErrDuplicateHandler, int(ch))
	}
	c.satellites[ch] = h
	return nil
}

// ProcessPending drains up to MaxPerTick messages without blocking.
//
// Returns:
//   - int: Number of messages taken from the input port
func (c *Controller) ProcessPending() int {
	n := 0
	for n < c.cfg.MaxPerTick {
		msg, ok := c.input.Poll()
		if !ok {
			break
		}
		n++
		c.process(msg)
	}

	if expired := c.assembler.Expire(c.now()); expired > 0 {
		c.decodeErrors.Add(uint64(expired)) //nolint:gosec // count is non-negative
		c.logger.Debug("expired incomplete diagnostic responses", "count", expired)
	}
	return n
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	st := Stats{
		Received:     c.received.Load(),
		Processed:    c.processed.Load(),
		System:       c.system.Load(),
		CAN:          c.canMsgs.Load(),
		AVC:          c.avcMsgs.Load(),
		Satellite:    c.satMsgs.Load(),
		Unknown:      c.unknown.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		OutOfSpec:    c.outOfSpec.Load(),
		Filtered:     c.filtered.Load(),
		Repeats:      c.repeats.Load(),
		Diagnostics:  c.diagnostics.Load(),
		FlowControls: c.flowControls.Load(),
		Actions:      c.actions.Load(),
	}
	if ns := c.lastMessage.Load(); ns != 0 {
		st.LastMessageAt = time.Unix(0, ns).UTC()
	}
	return st
}

func (c *Controller) process(msg transport.RawMessage) {
	c.received.Add(1)
	c.lastMessage.Store(c.now().UnixNano())

	var (
		actions []state.Action
		err     error
	)
	switch {
	case msg.Channel == transport.ChannelSystem:
		c.system.Add(1)
		actions, err = c.handleSystem(msg.Payload)
	case msg.Channel == transport.ChannelCAN:
		c.canMsgs.Add(1)
		actions, err = c.handleCAN(msg.Payload)
	case msg.Channel == transport.ChannelAVC:
		c.avcMsgs.Add(1)
		actions, err = c.handleAVC(msg.Payload)
	case msg.Channel.IsSatellite():
		c.satMsgs.Add(1)
		actions, err = c.handleSatellite(msg.Channel, msg.Payload)
	default:
		c.unknown.Add(1)
		c.logger.Debug("message on unknown channel", "channel", int(msg.Channel))
		return
	}

	if err != nil {
		if errors.Is(err, ErrNoHandler) {
			c.unknown.Add(1)
		} else {
			c.decodeErrors.Add(1)
		}
		c.logger.Debug("dropping message",
			"channel", msg.Channel.String(),
			"error", err,
		)
		return
	}

	for _, a := range actions {
		c.store.Dispatch(a)
	}
	c.actions.Add(uint64(len(actions)))
	c.processed.Add(1)
}

// gatewayStatus is the system channel payload.
type gatewayStatus struct {
	Msg     string `json:"msg"`
	Version string `json:"ver"`
	CAN     string `json:"can"`
	AVC     string `json:"avc"`
	Error   string `json:"error"`
}

func (c *Controller) handleSystem(payload json.RawMessage) ([]state.Action, error) {
	var st gatewayStatus
	if err := json.Unmarshal(payload, &st); err != nil {
		return nil, fmt.Errorf("%w: system: %w", ErrInvalidPayload, err)
	}

	var actions []state.Action
	if containsFold(st.Msg, "GATEWAY_READY") {
		c.logger.Info("gateway ready", "version", st.Version, "can", st.CAN, "avc", st.AVC)
		actions = append(actions, state.SetGatewayStatus{
			Connected: true,
			Version:   st.Version,
			Origin:    state.OriginHardware,
		})
	}
	if st.CAN == "CAN_READY" || containsFold(st.Msg, "CAN_READY") {
		actions = append(actions, state.SetBusReady{Bus: state.BusB, Ready: true, Origin: state.OriginHardware})
	}
	if st.AVC == "AVC_READY" || containsFold(st.Msg, "AVC_READY") {
		actions = append(actions, state.SetBusReady{Bus: state.BusA, Ready: true, Origin: state.OriginHardware})
	}

	errText := st.Error
	if errText == "" && containsFold(st.Msg, "error") {
		errText = st.Msg
	}
	if errText != "" {
		c.logger.Error("gateway error", "message", errText)
		actions = append(actions, state.SetGatewayError{Message: errText, Origin: state.OriginHardware})
	}
	return actions, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToUpper(s), strings.ToUpper(substr))
}
