package twin

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/egress"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/ingress"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/rules"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/rules/vehicle"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// Mode selects the ports the twin runs on.
type Mode string

// Run modes.
const (
	ModeProduction  Mode = "production"
	ModeDevelopment Mode = "development"
	ModeTest        Mode = "test"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeProduction, ModeDevelopment, ModeTest:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, s)
}

// DefaultRemoteQueue is the capacity of the remote action queue.
const DefaultRemoteQueue = 256

// Logger defines the logging interface used by the twin.
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

// Config configures a Twin.
type Config struct {
	Mode    Mode
	Vehicle string

	Link   transport.LinkConfig
	Replay transport.ReplayConfig

	// UDP mirrors satellite commands to local listeners. No targets
	// disables it.
	UDP transport.UDPConfig

	MaxPerTick       int
	MaxCascadeDepth  int
	DiagPollInterval time.Duration
	RemoteQueue      int
}

// Deps are optional collaborators. Zero values are built from Config.
type Deps struct {
	Logger Logger

	// Input and Output override the ports chosen by Mode.
	Input  transport.InputPort
	Output transport.OutputPort

	// Initial is the starting state. Defaults to state.Default().
	Initial *state.AppState

	// Rules replaces the built-in vehicle rules.
	Rules []rules.Rule
}

// Stats aggregates the component counters.
type Stats struct {
	Session       string             `json:"session"`
	Ticks         uint64             `json:"ticks"`
	RemoteApplied uint64             `json:"remote_applied"`
	RemoteDropped uint64             `json:"remote_dropped"`
	RemoteQueued  int                `json:"remote_queued"`
	Store         state.Stats        `json:"store"`
	Rules         rules.Stats        `json:"rules"`
	Ingress       ingress.Stats      `json:"ingress"`
	Egress        egress.Stats       `json:"egress"`
	Poller        egress.PollerStats `json:"poller"`
	Link          transport.Status   `json:"link"`
}

// Twin owns the store and every component around it.
//
// Update must be called from a single goroutine. Enqueue, Stats and State
// are safe for concurrent use.
type Twin struct {
	cfg     Config
	logger  Logger
	session string

	store   *state.Store
	engine  *rules.Engine
	ingress *ingress.Controller
	egress  *egress.Controller
	poller  *egress.DiagnosticPoller

	input  transport.InputPort
	output transport.OutputPort
	udp    *transport.UDPOutput

	remote        chan state.Action
	ticks         atomic.Uint64
	remoteApplied atomic.Uint64
	remoteDropped atomic.Uint64

	linkConnected bool

	mu      sync.Mutex
	started bool
	stopped bool
}

// New assembles a twin.
//
// Parameters:
//   - cfg: Configuration
//   - deps: Optional collaborators
//
// Returns:
//   - *Twin: Ready to Start
//   - error: ErrInvalidMode, a UDP target error or a rule registration error
func New(cfg Config, deps Deps) (*Twin, error) {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	if cfg.RemoteQueue <= 0 {
		cfg.RemoteQueue = DefaultRemoteQueue
	}
	if cfg.MaxCascadeDepth <= 0 {
		cfg.MaxCascadeDepth = rules.DefaultMaxCascadeDepth
	}

	p, err := buildPorts(cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	initial := state.Default()
	if deps.Initial != nil {
		initial = *deps.Initial
	}

	t := &Twin{
		cfg:     cfg,
		logger:  logger,
		session: uuid.NewString(),
		input:   p.input,
		output:  p.output,
		udp:     p.udp,
		remote:  make(chan state.Action, cfg.RemoteQueue),
	}

	t.store = state.NewStore(initial, logger)
	t.store.SetFaultHandler(func(f state.Fault) {
		logger.Debug("value clamped", "fault", f.String())
	})

	t.engine = rules.NewEngine(t.store, cfg.MaxCascadeDepth, logger)
	t.engine.SetFaultHandler(func(err error) {
		logger.Warn("rule fault", "error", err)
	})
	ruleSet := deps.Rules
	if ruleSet == nil {
		ruleSet = vehicle.All()
	}
	for _, r := range ruleSet {
		if err := t.engine.Register(r); err != nil {
			_ = t.closeUDP()
			return nil, fmt.Errorf("registering rule: %w", err)
		}
	}

	t.ingress = ingress.New(t.store, t.input, ingress.Config{MaxPerTick: cfg.MaxPerTick}, logger)
	t.ingress.SetFlowControlOutput(t.output)
	if err := t.ingress.RegisterDefaults(); err != nil {
		_ = t.closeUDP()
		return nil, fmt.Errorf("registering satellites: %w", err)
	}

	t.egress = egress.New(t.store, t.output, logger)
	t.poller = egress.NewDiagnosticPoller(t.output, cfg.DiagPollInterval, logger)

	return t, nil
}

// ports are the transports a twin runs on.
type ports struct {
	input  transport.InputPort
	output transport.OutputPort

	// udp is also wrapped in output. Nil when disabled.
	udp *transport.UDPOutput
}

// buildPorts picks the transport for the run mode. Configured UDP
// targets are fanned out alongside the mode's output unless the caller
// supplied its own output.
func buildPorts(cfg Config, deps Deps, logger Logger) (ports, error) {
	input, output := deps.Input, deps.Output
	if input != nil && output != nil {
		return ports{input: input, output: output}, nil
	}

	switch cfg.Mode {
	case ModeProduction:
		link := transport.NewLink(cfg.Link, nil, logger)
		if input == nil {
			input = link
		}
		if output == nil {
			output = link
		}
	case ModeDevelopment:
		if input == nil {
			if cfg.Replay.Path != "" {
				input = transport.NewReplay(cfg.Replay, logger)
			} else {
				input = transport.NewMockInput()
			}
		}
		if output == nil {
			output = transport.NewLogOutput(logger)
		}
	case ModeTest:
		if input == nil {
			input = transport.NewMockInput()
		}
		if output == nil {
			output = transport.NewMockOutput()
		}
	default:
		return ports{}, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}

	p := ports{input: input, output: output}
	if deps.Output == nil && len(cfg.UDP.Targets) > 0 {
		udp, err := transport.NewUDPOutput(cfg.UDP, logger)
		if err != nil {
			return ports{}, fmt.Errorf("creating udp output: %w", err)
		}
		p.udp = udp
		p.output = transport.NewMultiOutput(output, udp)
	}
	return p, nil
}

// Start subscribes the components and starts the ports.
func (t *Twin) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}

	t.engine.Start()
	if err := t.egress.Start(); err != nil {
		return err
	}
	if err := t.input.Start(ctx); err != nil {
		t.egress.Stop()
		t.engine.Stop()
		return fmt.Errorf("starting input: %w", err)
	}
	if in, ok := t.output.(transport.InputPort); ok && !t.sharedPort() {
		if err := in.Start(ctx); err != nil {
			_ = t.input.Stop()
			t.egress.Stop()
			t.engine.Stop()
			return fmt.Errorf("starting output: %w", err)
		}
	}

	t.started = true
	t.logger.Info("virtual twin started",
		"mode", string(t.cfg.Mode),
		"vehicle", t.cfg.Vehicle,
		"session", t.session,
		"rules", len(t.engine.Rules()),
	)
	return nil
}

// Stop unsubscribes the components and stops the ports.
func (t *Twin) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		return ErrNotStarted
	}
	if t.stopped {
		return nil
	}
	t.stopped = true

	t.egress.Stop()
	t.engine.Stop()

	err := t.input.Stop()
	if in, ok := t.output.(transport.InputPort); ok && !t.sharedPort() {
		if stopErr := in.Stop(); err == nil {
			err = stopErr
		}
	}
	if closeErr := t.closeUDP(); err == nil {
		err = closeErr
	}
	t.logger.Info("virtual twin stopped", "session", t.session, "ticks", t.ticks.Load())
	return err
}

// closeUDP releases the UDP socket, if any.
func (t *Twin) closeUDP() error {
	if t.udp == nil {
		return nil
	}
	return t.udp.Close()
}

// sharedPort reports whether input and output are the same object.
func (t *Twin) sharedPort() bool {
	out, ok := t.output.(transport.InputPort)
	return ok && out == t.input
}

// Update runs one tick.
//
// Parameters:
//   - now: Tick time, used for diagnostic polling
//
// Returns:
//   - int: Remote actions plus inbound messages processed
func (t *Twin) Update(now time.Time) int {
	t.ticks.Add(1)

	n := t.drainRemote()
	n += t.ingress.ProcessPending()
	t.poller.Poll(now)
	t.syncConnection()
	t.syncCounters()
	return n
}

// Enqueue queues an action from a network goroutine for the next tick.
func (t *Twin) Enqueue(a state.Action) error {
	select {
	case t.remote <- a:
		return nil
	default:
		t.remoteDropped.Add(1)
		return ErrQueueFull
	}
}

// State returns the current snapshot.
func (t *Twin) State() state.AppState {
	return t.store.State()
}

// Store returns the state store for subscribers.
func (t *Twin) Store() *state.Store {
	return t.store
}

// Session returns the id of this run.
func (t *Twin) Session() string {
	return t.session
}

// Rules lists the registered rules.
func (t *Twin) Rules() []rules.Info {
	return t.engine.Rules()
}

// Stats returns a snapshot of every component's counters.
func (t *Twin) Stats() Stats {
	return Stats{
		Session:       t.session,
		Ticks:         t.ticks.Load(),
		RemoteApplied: t.remoteApplied.Load(),
		RemoteDropped: t.remoteDropped.Load(),
		RemoteQueued:  len(t.remote),
		Store:         t.store.Stats(),
		Rules:         t.engine.Stats(),
		Ingress:       t.ingress.Stats(),
		Egress:        t.egress.Stats(),
		Poller:        t.poller.Stats(),
		Link:          t.linkStatus(),
	}
}

func (t *Twin) drainRemote() int {
	n := 0
	for n < cap(t.remote) {
		select {
		case a := <-t.remote:
			t.store.Dispatch(a)
			t.remoteApplied.Add(1)
			n++
		default:
			return n
		}
	}
	return n
}

func (t *Twin) linkStatus() transport.Status {
	if r, ok := t.input.(transport.StatusReporter); ok {
		return r.Status()
	}
	st := transport.Status{State: transport.StateDisconnected}
	if t.input.IsConnected() {
		st.State = transport.StateConnected
	}
	return st
}

// syncConnection mirrors the transport state into the Connection slice and
// resyncs satellites when the link comes up.
func (t *Twin) syncConnection() {
	st := t.linkStatus()
	t.store.Dispatch(state.SyncLink{
		State:       state.LinkState(st.State.String()),
		Attempts:    st.Attempts,
		Reconnects:  st.Reconnects,
		LastMessage: st.LastMessage.Truncate(time.Second),
		Origin:      state.OriginInternal,
	})

	connected := st.State == transport.StateConnected
	if connected && !t.linkConnected {
		t.logger.Info("gateway link up, resyncing satellites", "reconnects", st.Reconnects)
		t.egress.Resync(t.store.State())
	}
	t.linkConnected = connected
}

func (t *Twin) syncCounters() {
	in := t.ingress.Stats()
	out := t.egress.Stats()
	poll := t.poller.Stats()
	rs := t.engine.Stats()
	link := t.linkStatus()

	t.store.Dispatch(state.SyncCounters{
		Counters: state.Counters{
			DecodeErrors:    in.DecodeErrors + link.ParseErrors,
			OutOfSpec:       in.OutOfSpec,
			UnknownMessages: in.Unknown,
			DroppedInbound:  link.RxDropped + t.remoteDropped.Load(),
			DroppedOutbound: link.TxDropped + link.TxDrained,
			SendFailures:    out.SendFailures + poll.SendFailures,
			CascadeFaults:   rs.CascadeFaults,
			RuleErrors:      rs.Errors,
		},
		Origin: state.OriginInternal,
	})
}
