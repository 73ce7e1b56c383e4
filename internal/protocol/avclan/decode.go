package avclan

import "fmt"

// Event is a typed observation decoded from a frame.
type Event interface {
	event()
}

// IceStatus reports the combustion engine state broadcast to 0x490.
type IceStatus struct {
	Running bool
}

// OutsideTemp reports the outside temperature in °C.
type OutsideTemp struct {
	Celsius float64
}

// ClimateStatus is the A/C amplifier status broadcast.
type ClimateStatus struct {
	Recirc     bool
	AirMode    byte
	Ambient    float64
	HasAmbient bool
}

// CommandSeen reports a recognised command frame sent by another device,
// for example the head unit changing bass after a knob turn.
type CommandSeen struct {
	Command Command
}

// Button is a steering wheel or panel button event (0x040 -> 0x200).
type Button struct {
	Pressed  bool
	Code     uint16
	Modifier byte
	Suffix   byte
	Name     string
}

// Touch is a touch screen event decoded from touch controller traffic.
type Touch struct {
	X, Y uint8
	Kind string
}

// DebugBytes carries raw payloads of pairs kept for correlation work.
type DebugBytes struct {
	Pair Pair
	Data []byte
}

// Unparsed carries a frame whose route has no decoder.
type Unparsed struct {
	Frame Frame
}

func (IceStatus) event()     {}
func (OutsideTemp) event()   {}
func (ClimateStatus) event() {}
func (CommandSeen) event()   {}
func (Button) event()        {}
func (Touch) event()         {}
func (DebugBytes) event()    {}
func (Unparsed) event()      {}

// Decoded is the result of decoding one frame.
//
// Decode ignores Frame.Count. Suppressing repeats needs the last frame
// delivered on the route, which the caller keeps.
type Decoded struct {
	Frame  Frame
	Events []Event
}

// ICE status bytes on the 0x490 status sink.
const (
	iceStatusMarker  byte = 0x46
	iceRunningMarker byte = 0xC8
	iceOffMarker     byte = 0xC1

	outsideTempFlag byte = 0x90

	ambientMin = 0
	ambientMax = 50

	touchControllerLen = 13
)

// Known button names keyed by code.
var buttonNames = map[uint16]string{
	0x6044: "STATUS",
	0x6024: "STATUS_ALT",
	0x6184: "AUDIO_1",
	0xC104: "AUDIO_2",
	0x30A4: "SEEK",
	0x0005: "MENU",
}

// debugPairs are routes whose raw bytes are retained for analysis.
var debugPairs = map[Pair]struct{}{
	{Master: AddrMFD, Slave: AddrStatusSink}:          {},
	{Master: AddrEnergySource, Slave: AddrSystemCtrl}: {},
}

// pairDecoders maps routes to their payload decoders.
var pairDecoders = map[Pair]func(Frame) []Event{
	{Master: AddrClimateCtrl, Slave: AddrHVAC}:         decodeOutsideTemp,
	{Master: AddrButtonInput, Slave: AddrDisplayTouch}: decodeButton,
	{Master: AddrTouchPanel, Slave: AddrTouchCtrl}:     decodeTouch,
	{Master: AddrTouchPanel, Slave: AddrNavigation}:    decodeTouch,
}

// Decode converts a frame into typed events.
//
// The result always contains at least one event: unknown routes yield
// Unparsed.
//
// Parameters:
//   - f: Frame from ParseFrame
//
// Returns:
//   - Decoded: Events in a stable order for identical input
func Decode(f Frame) Decoded {
	var events []Event

	if cmd, ok := DecodeCommand(f); ok {
		events = append(events, CommandSeen{Command: cmd})
	}

	if f.Slave == AddrStatusSink {
		if ev, ok := decodeIceStatus(f.Data); ok {
			events = append(events, ev)
		}
	}

	if f.Master == AddrClimateAmp {
		if ev, ok := decodeClimateStatus(f.Data); ok {
			events = append(events, ev)
		}
	}

	if dec, ok := pairDecoders[f.Pair()]; ok {
		events = append(events, dec(f)...)
	}

	if _, ok := debugPairs[f.Pair()]; ok {
		data := make([]byte, len(f.Data))
		copy(data, f.Data)
		events = append(events, DebugBytes{Pair: f.Pair(), Data: data})
	}

	if len(events) == 0 {
		events = append(events, Unparsed{Frame: f})
	}
	return Decoded{Frame: f, Events: events}
}

// decodeIceStatus reads [xx 46 C8|C1 ..] status frames.
func decodeIceStatus(d []byte) (IceStatus, bool) {
	if len(d) < 3 || d[1] != iceStatusMarker { //nolint:mnd // status prefix length
		return IceStatus{}, false
	}
	switch d[2] {
	case iceRunningMarker:
		return IceStatus{Running: true}, true
	case iceOffMarker:
		return IceStatus{Running: false}, true
	}
	return IceStatus{}, false
}

func decodeClimateStatus(d []byte) (ClimateStatus, bool) {
	if len(d) < 5 { //nolint:mnd // status broadcast minimum length
		return ClimateStatus{}, false
	}
	st := ClimateStatus{
		Recirc:  climateRecirc.set(d),
		AirMode: climateAirMode.value(d),
	}
	for _, field := range []linear{climateAmbient3, climateAmbient4} {
		if v, ok := field.read(d); ok && v >= ambientMin && v <= ambientMax {
			st.Ambient = v
			st.HasAmbient = true
			break
		}
	}
	return st, true
}

func decodeOutsideTemp(f Frame) []Event {
	d := f.Data
	if len(d) < 8 || outsideTempMarker.value(d) != outsideTempFlag || d[outsideTempField.Index] == 0 { //nolint:mnd // frame length
		return nil
	}
	v, _ := outsideTempField.read(d)
	return []Event{OutsideTemp{Celsius: v}}
}

func decodeButton(f Frame) []Event {
	d := f.Data
	if len(d) < buttonFrameLen || (d[0] != buttonPress && d[0] != buttonRelease) {
		return nil
	}
	code := uint16(d[2])<<8 | uint16(d[3])
	name, ok := buttonNames[code]
	if !ok {
		name = fmt.Sprintf("BTN_%04X", code)
	}
	return []Event{Button{
		Pressed:  d[0] == buttonPress,
		Code:     code,
		Modifier: d[1],
		Suffix:   d[4],
		Name:     name,
	}}
}

// decodeTouch handles the touch controller formats with known layouts:
// 13-byte position reports ([.. 01 21 x _ y ..]) and 2-byte taps.
func decodeTouch(f Frame) []Event {
	d := f.Data
	switch {
	case len(d) == touchControllerLen && d[5] == 0x01 && d[6] == logicSwitch:
		return []Event{Touch{X: d[7], Y: d[9], Kind: "press"}}
	case len(d) == 2:
		return []Event{Touch{X: d[0], Y: d[1], Kind: "tap"}}
	}
	return nil
}
