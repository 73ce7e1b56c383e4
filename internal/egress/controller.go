package egress

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/avclan"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// Logger defines the logging interface used by egress.
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

// Store is the subset of the state store used by egress.
type Store interface {
	Subscribe(slices state.Slices, fn func(state.Change)) func()
}

// Stats holds egress counters.
type Stats struct {
	Changes      uint64 `json:"changes"`
	Skipped      uint64 `json:"skipped"`
	Commands     uint64 `json:"commands"`
	AVC          uint64 `json:"avc"`
	Satellite    uint64 `json:"satellite"`
	SendFailures uint64 `json:"send_failures"`
	EncodeErrors uint64 `json:"encode_errors"`
}

// Controller sends commands for user and rule changes.
//
// Thread Safety: Start, Stop and Stats are safe for concurrent use. The
// change handler runs on the store's notification path.
type Controller struct {
	store  Store
	out    transport.OutputPort
	logger Logger

	mu          sync.Mutex
	unsubscribe func()

	changes      atomic.Uint64
	skipped      atomic.Uint64
	commands     atomic.Uint64
	avc          atomic.Uint64
	satellite    atomic.Uint64
	sendFailures atomic.Uint64
	encodeErrors atomic.Uint64
}

// New creates an egress controller writing to out.
func New(store Store, out transport.OutputPort, logger Logger) *Controller {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Controller{
		store:  store,
		out:    out,
		logger: logger,
	}
}

// Start subscribes to the store.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		return ErrAlreadyStarted
	}
	c.unsubscribe = c.store.Subscribe(state.SliceAll, c.handle)
	c.logger.Info("egress started")
	return nil
}

// Stop unsubscribes from the store.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

// Stats returns a snapshot of the counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Changes:      c.changes.Load(),
		Skipped:      c.skipped.Load(),
		Commands:     c.commands.Load(),
		AVC:          c.avc.Load(),
		Satellite:    c.satellite.Load(),
		SendFailures: c.sendFailures.Load(),
		EncodeErrors: c.encodeErrors.Load(),
	}
}

// Resync sends the full lights and VFD state regardless of origin. Used
// after the gateway reconnects, when satellites may have lost their state.
func (c *Controller) Resync(s state.AppState) {
	c.send(drlCommand(s.Lights))
	vfd := s.Satellites.VFD
	c.send(vfdEnergyCommand(vfd))
	c.send(vfdStateCommand(vfd))
	c.send(vfdConfigCommand(vfd))
}

func (c *Controller) handle(ch state.Change) {
	c.changes.Add(1)

	switch ch.Action.Source() {
	case state.OriginUser, state.OriginRule:
	default:
		c.skipped.Add(1)
		return
	}

	prev, next := ch.Prev, ch.Next
	if ch.Slices.Has(state.SliceAudio) {
		c.sendAVC(audioCommands(prev.Audio, next.Audio))
	}
	if ch.Slices.Has(state.SliceClimate) {
		c.sendAVC(climateCommands(prev.Climate, next.Climate))
	}
	if ch.Slices.Has(state.SliceLights) && prev.Lights.DRLActive != next.Lights.DRLActive {
		c.send(drlCommand(next.Lights))
	}
	if ch.Slices.Has(state.SliceSatellites) {
		for _, cmd := range vfdCommands(prev.Satellites.VFD, next.Satellites.VFD) {
			c.send(cmd)
		}
	}
}

// audioCommands diffs the audio slice.
func audioCommands(prev, next state.AudioState) []avclan.Command {
	var cmds []avclan.Command
	if prev.Volume != next.Volume {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdSetVolume, Value: next.Volume})
	}
	if prev.Muted != next.Muted {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdMuteToggle})
	}
	tones := []struct {
		kind       avclan.CommandKind
		prev, next int
	}{
		{avclan.CmdSetBass, prev.Bass, next.Bass},
		{avclan.CmdSetMid, prev.Mid, next.Mid},
		{avclan.CmdSetTreble, prev.Treble, next.Treble},
		{avclan.CmdSetBalance, prev.Balance, next.Balance},
		{avclan.CmdSetFader, prev.Fader, next.Fader},
	}
	for _, t := range tones {
		if t.prev != t.next {
			cmds = append(cmds, avclan.Command{Kind: t.kind, Value: t.next})
		}
	}
	return cmds
}

// climateCommands diffs the climate slice. The amplifier only accepts
// toggles for the on/off settings, so a change sends one toggle.
func climateCommands(prev, next state.ClimateState) []avclan.Command {
	var cmds []avclan.Command
	if prev.TargetTemp != next.TargetTemp {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdSetTargetTemp, Value: int(math.Round(next.TargetTemp * 10))})
	}
	if prev.FanSpeed != next.FanSpeed {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdSetFanSpeed, Value: next.FanSpeed})
	}
	if prev.AirDirection != next.AirDirection {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdSetAirDirection, Value: next.AirDirection})
	}
	if prev.AC != next.AC {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdACToggle})
	}
	if prev.Auto != next.Auto {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdAutoToggle})
	}
	if prev.Recirc != next.Recirc {
		cmds = append(cmds, avclan.Command{Kind: avclan.CmdRecircToggle})
	}
	return cmds
}

func (c *Controller) sendAVC(cmds []avclan.Command) {
	for _, cmd := range cmds {
		frame, err := avclan.Encode(cmd)
		if err != nil {
			c.encodeErrors.Add(1)
			c.logger.Warn("cannot encode bus command", "command", cmd.String(), "error", err)
			continue
		}
		c.send(transport.OutgoingCommand{
			Channel: transport.ChannelAVC,
			Command: cmd.Kind.String(),
			Payload: frame,
		})
	}
}

func (c *Controller) send(cmd transport.OutgoingCommand) {
	if err := c.out.Send(cmd); err != nil {
		c.sendFailures.Add(1)
		c.logger.Warn("command not sent",
			"channel", cmd.Channel.String(),
			"cmd", cmd.Command,
			"error", err,
		)
		return
	}
	c.commands.Add(1)
	switch {
	case cmd.Channel == transport.ChannelAVC:
		c.avc.Add(1)
	case cmd.Channel.IsSatellite():
		c.satellite.Add(1)
	}
}
