package ingress

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/avclan"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// debugStreams names the retained raw routes.
var debugStreams = map[avclan.Pair]state.DebugStream{
	{Master: avclan.AddrMFD, Slave: avclan.AddrStatusSink}:          state.DebugHybrid,
	{Master: avclan.AddrEnergySource, Slave: avclan.AddrSystemCtrl}: state.DebugEnergy,
}

func (c *Controller) handleAVC(payload json.RawMessage) ([]state.Action, error) {
	f, err := avclan.ParseFrame(payload)
	if err != nil {
		return nil, err
	}

	if c.isRepeat(f) {
		c.repeats.Add(1)
		return nil, nil
	}
	c.lastAVC[f.Pair()] = f

	decoded := avclan.Decode(f)

	var actions []state.Action
	for _, ev := range decoded.Events {
		actions = append(actions, c.eventActions(ev)...)
	}
	return actions, nil
}

// isRepeat reports whether f is a gateway repeat of the frame last
// delivered on its route. A counted frame whose content differs from the
// last delivery is new: the gateway folded a change together with its
// repeats.
func (c *Controller) isRepeat(f avclan.Frame) bool {
	if f.Count <= 1 {
		return false
	}
	last, ok := c.lastAVC[f.Pair()]
	return ok && last.Equal(f)
}

func (c *Controller) eventActions(ev avclan.Event) []state.Action {
	const origin = state.OriginHardware

	switch ev := ev.(type) {
	case avclan.IceStatus:
		return []state.Action{state.SetIceRunning{Running: ev.Running, Origin: origin}}

	case avclan.OutsideTemp:
		return []state.Action{state.SetOutsideTemp{Celsius: ev.Celsius, Origin: origin}}

	case avclan.ClimateStatus:
		actions := []state.Action{state.SetClimateFlag{Flag: state.FlagRecirc, On: ev.Recirc, Origin: origin}}
		if ev.HasAmbient {
			actions = append(actions, state.SetOutsideTemp{Celsius: ev.Ambient, Origin: origin})
		}
		return actions

	case avclan.CommandSeen:
		if a, ok := c.observedCommand(ev.Command); ok {
			return []state.Action{a}
		}

	case avclan.Button:
		return []state.Action{state.ButtonEvent{Name: ev.Name, Pressed: ev.Pressed, Origin: origin}}

	case avclan.Touch:
		return []state.Action{state.TouchEvent{X: int(ev.X), Y: int(ev.Y), Pressed: true, Origin: origin}}

	case avclan.DebugBytes:
		if stream, ok := debugStreams[ev.Pair]; ok {
			return []state.Action{state.DebugFrame{Stream: stream, Hex: hexBytes(ev.Data), Origin: origin}}
		}

	case avclan.Unparsed:
		c.unknown.Add(1)
	}
	return nil
}

// observedCommand mirrors a command another device sent on the bus, for
// example the head unit reacting to its own volume knob.
func (c *Controller) observedCommand(cmd avclan.Command) (state.Action, bool) {
	const origin = state.OriginHardware

	switch cmd.Kind {
	case avclan.CmdSetVolume:
		return state.SetVolume{Volume: cmd.Value, Origin: origin}, true
	case avclan.CmdVolumeUp, avclan.CmdVolumeDown:
		step := cmd.Value
		if cmd.Kind == avclan.CmdVolumeDown {
			step = -step
		}
		return state.SetVolume{Volume: c.store.State().Audio.Volume + step, Origin: origin}, true
	case avclan.CmdMuteToggle:
		return state.SetMute{Muted: !c.store.State().Audio.Muted, Origin: origin}, true
	case avclan.CmdSetBass:
		return state.SetTone{Tone: state.ToneBass, Value: cmd.Value, Origin: origin}, true
	case avclan.CmdSetMid:
		return state.SetTone{Tone: state.ToneMid, Value: cmd.Value, Origin: origin}, true
	case avclan.CmdSetTreble:
		return state.SetTone{Tone: state.ToneTreble, Value: cmd.Value, Origin: origin}, true
	case avclan.CmdSetBalance:
		return state.SetTone{Tone: state.ToneBalance, Value: cmd.Value, Origin: origin}, true
	case avclan.CmdSetFader:
		return state.SetTone{Tone: state.ToneFader, Value: cmd.Value, Origin: origin}, true
	case avclan.CmdSetTargetTemp:
		return state.SetTargetTemp{Celsius: float64(cmd.Value) / 10, Origin: origin}, true
	case avclan.CmdSetFanSpeed:
		return state.SetFanSpeed{Speed: cmd.Value, Origin: origin}, true
	case avclan.CmdSetAirDirection:
		return state.SetAirDirection{Direction: cmd.Value, Origin: origin}, true
	case avclan.CmdACToggle:
		return state.SetClimateFlag{Flag: state.FlagAC, On: !c.store.State().Climate.AC, Origin: origin}, true
	case avclan.CmdAutoToggle:
		return state.SetClimateFlag{Flag: state.FlagAuto, On: !c.store.State().Climate.Auto, Origin: origin}, true
	case avclan.CmdRecircToggle:
		return state.SetClimateFlag{Flag: state.FlagRecirc, On: !c.store.State().Climate.Recirc, Origin: origin}, true
	}
	// Temperature steps, beeps and touch injections carry no state.
	return nil, false
}

func hexBytes(data []byte) string {
	return strings.TrimSpace(fmt.Sprintf("% X", data))
}
