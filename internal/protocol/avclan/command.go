package avclan

import (
	"fmt"
	"math"
)

// CommandKind identifies a semantic AVC-LAN command.
type CommandKind int

// Supported commands.
const (
	CmdSetVolume CommandKind = iota + 1
	CmdVolumeUp
	CmdVolumeDown
	CmdMuteToggle
	CmdSetBass
	CmdSetMid
	CmdSetTreble
	CmdSetBalance
	CmdSetFader
	CmdSetTargetTemp
	CmdTempUp
	CmdTempDown
	CmdSetFanSpeed
	CmdSetAirDirection
	CmdACToggle
	CmdAutoToggle
	CmdRecircToggle
	CmdBeep
	CmdTouch
)

var commandNames = map[CommandKind]string{
	CmdSetVolume:       "set_volume",
	CmdVolumeUp:        "volume_up",
	CmdVolumeDown:      "volume_down",
	CmdMuteToggle:      "mute_toggle",
	CmdSetBass:         "set_bass",
	CmdSetMid:          "set_mid",
	CmdSetTreble:       "set_treble",
	CmdSetBalance:      "set_balance",
	CmdSetFader:        "set_fader",
	CmdSetTargetTemp:   "set_target_temp",
	CmdTempUp:          "temp_up",
	CmdTempDown:        "temp_down",
	CmdSetFanSpeed:     "set_fan_speed",
	CmdSetAirDirection: "set_air_direction",
	CmdACToggle:        "ac_toggle",
	CmdAutoToggle:      "auto_toggle",
	CmdRecircToggle:    "recirc_toggle",
	CmdBeep:            "beep",
	CmdTouch:           "touch",
}

// String returns the wire name of the command kind.
func (k CommandKind) String() string {
	if name, ok := commandNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is a semantic request to a device on the bus.
//
// Value carries the parameter in user units:
//   - volume 0..63, volume steps 1..4
//   - bass/mid/treble -5..5, balance/fader -7..7
//   - target temperature 180..280 in tenths of °C
//   - fan speed 0..7, air direction 0..3
//   - beep duration 1..4
//
// Touch uses X and Y (0..255); toggles ignore Value.
type Command struct {
	Kind  CommandKind
	Value int
	X, Y  uint8
}

// String returns a human-readable representation.
func (c Command) String() string {
	if c.Kind == CmdTouch {
		return fmt.Sprintf("%s(%d,%d)", c.Kind, c.X, c.Y)
	}
	return fmt.Sprintf("%s(%d)", c.Kind, c.Value)
}

// Audio parameter codes understood by the DSP amplifier.
const (
	paramVolume     byte = 0x90
	paramBalance    byte = 0x91
	paramFader      byte = 0x92
	paramBass       byte = 0x93
	paramMid        byte = 0x94
	paramTreble     byte = 0x95
	paramVolumeUp   byte = 0x9C
	paramVolumeDown byte = 0x9D
	paramMute       byte = 0x9E
)

// Logic device bytes used in command payloads.
const (
	logicSwitch    byte = 0x21
	logicSWConvert byte = 0x24
	logicCmdSwitch byte = 0x25
	logicBeep      byte = 0x29
	logicAudioDraw byte = 0x5E
	logicAudioAmp  byte = 0x74
)

// Climate command bytes.
const (
	climateOpTargetTemp byte = 0x03
	climateOpFanSpeed   byte = 0x22
	climateOpAirDir     byte = 0x23
	buttonPress         byte = 0x28
	buttonRelease       byte = 0x2A
	buttonClimateGroup  byte = 0x10
	buttonSuffixAudio   byte = 0x62
	touchPressMarker    byte = 0x78
	beepOpcode          byte = 0x60
)

// Climate button codes sent as simulated key presses.
var climateButtons = map[CommandKind]byte{
	CmdTempUp:       0x01,
	CmdTempDown:     0x02,
	CmdACToggle:     0x05,
	CmdAutoToggle:   0x06,
	CmdRecircToggle: 0x07,
}

// Value ranges and encodings.
const (
	toneCenter = 0x10

	volumeMax   = 63
	volumeMask  = 0x3F
	stepMin     = 1
	stepMax     = 4
	toneLimit   = 5
	spreadLimit = 7

	// TargetTempMin and TargetTempMax bound the climate set point in
	// tenths of °C.
	TargetTempMin = 180
	TargetTempMax = 280

	// tempBase is the code for 65 °F (18 °C); codes step one per °F.
	tempBase       = 0x22
	tempCodeMin    = 0x10
	tempCodeMax    = 0x36
	fanMax         = 7
	airDirMax      = 3
	beepMin        = 1
	beepMax        = 4
	coordinateMax  = 255
	audioFrameLen  = 5
	beepFrameLen   = 5
	touchFrameLen  = 8
	buttonFrameLen = 5
)

// Encode builds the frame for a command. Values outside the documented
// range are clamped.
//
// Parameters:
//   - cmd: Semantic command
//
// Returns:
//   - Frame: Frame ready for transmission (Count is zero)
//   - error: ErrUnknownCommand for an unsupported kind
func Encode(cmd Command) (Frame, error) {
	switch cmd.Kind {
	case CmdSetVolume:
		return audioFrame(paramVolume, byte(clamp(cmd.Value, 0, volumeMax))), nil
	case CmdVolumeUp:
		return audioFrame(paramVolumeUp, byte(clamp(cmd.Value, stepMin, stepMax))), nil
	case CmdVolumeDown:
		return audioFrame(paramVolumeDown, byte(clamp(cmd.Value, stepMin, stepMax))), nil
	case CmdMuteToggle:
		return audioFrame(paramMute, 0x01), nil
	case CmdSetBass:
		return audioFrame(paramBass, toneByte(cmd.Value, toneLimit)), nil
	case CmdSetMid:
		return audioFrame(paramMid, toneByte(cmd.Value, toneLimit)), nil
	case CmdSetTreble:
		return audioFrame(paramTreble, toneByte(cmd.Value, toneLimit)), nil
	case CmdSetBalance:
		return audioFrame(paramBalance, toneByte(cmd.Value, spreadLimit)), nil
	case CmdSetFader:
		return audioFrame(paramFader, toneByte(cmd.Value, spreadLimit)), nil
	case CmdSetTargetTemp:
		return Frame{
			Master:  AddrMFD,
			Slave:   AddrClimateAmp,
			Control: ControlRequest,
			Data:    []byte{climateOpTargetTemp, EncodeTargetTemp(cmd.Value)},
		}, nil
	case CmdSetFanSpeed:
		return Frame{
			Master:  AddrMFD,
			Slave:   AddrHVAC,
			Control: ControlCommand,
			Data:    []byte{climateOpFanSpeed, byte(clamp(cmd.Value, 0, fanMax))},
		}, nil
	case CmdSetAirDirection:
		return Frame{
			Master:  AddrMFD,
			Slave:   AddrHVAC,
			Control: ControlCommand,
			Data:    []byte{climateOpAirDir, byte(clamp(cmd.Value, 0, airDirMax))},
		}, nil
	case CmdTempUp, CmdTempDown:
		return climateButtonFrame(AddrMFD, climateButtons[cmd.Kind]), nil
	case CmdACToggle, CmdAutoToggle, CmdRecircToggle:
		return climateButtonFrame(AddrButtonInput, climateButtons[cmd.Kind]), nil
	case CmdBeep:
		return Frame{
			Master:  AddrMFD,
			Slave:   AddrDSPAmp,
			Control: ControlData,
			Data:    []byte{0x00, logicAudioDraw, logicBeep, beepOpcode, byte(clamp(cmd.Value, beepMin, beepMax))},
		}, nil
	case CmdTouch:
		return Frame{
			Master:  AddrMFD,
			Slave:   AddrNavigation,
			Control: ControlData,
			Data:    []byte{0x00, logicSwitch, logicSWConvert, touchPressMarker, cmd.X, cmd.Y, cmd.X, cmd.Y},
		}, nil
	default:
		return Frame{}, fmt.Errorf("%w: %s", ErrUnknownCommand, cmd.Kind)
	}
}

// DecodeCommand recognises a frame produced by Encode (or the equivalent
// frame sent by factory equipment) and returns the semantic command.
func DecodeCommand(f Frame) (Command, bool) {
	d := f.Data
	switch f.Pair() {
	case Pair{Master: AddrHeadUnit, Slave: AddrDSPAmp}:
		if f.Control != ControlData || len(d) != audioFrameLen ||
			d[0] != 0x00 || d[1] != logicCmdSwitch || d[2] != logicAudioAmp {
			return Command{}, false
		}
		return decodeAudioParam(d[3], d[4])

	case Pair{Master: AddrMFD, Slave: AddrClimateAmp}:
		if f.Control == ControlRequest && len(d) == 2 && d[0] == climateOpTargetTemp {
			return Command{Kind: CmdSetTargetTemp, Value: DecodeTargetTemp(d[1])}, true
		}

	case Pair{Master: AddrMFD, Slave: AddrHVAC}:
		if f.Control != ControlCommand {
			return Command{}, false
		}
		if len(d) == 2 {
			switch d[0] {
			case climateOpFanSpeed:
				return Command{Kind: CmdSetFanSpeed, Value: int(d[1])}, true
			case climateOpAirDir:
				return Command{Kind: CmdSetAirDirection, Value: int(d[1])}, true
			}
		}
		if kind, ok := decodeClimateButton(d); ok && (kind == CmdTempUp || kind == CmdTempDown) {
			return Command{Kind: kind}, true
		}

	case Pair{Master: AddrButtonInput, Slave: AddrHVAC}:
		if f.Control != ControlCommand {
			return Command{}, false
		}
		if kind, ok := decodeClimateButton(d); ok && kind != CmdTempUp && kind != CmdTempDown {
			return Command{Kind: kind}, true
		}

	case Pair{Master: AddrMFD, Slave: AddrDSPAmp}:
		if f.Control == ControlData && len(d) == beepFrameLen &&
			d[0] == 0x00 && d[1] == logicAudioDraw && d[2] == logicBeep && d[3] == beepOpcode {
			return Command{Kind: CmdBeep, Value: int(d[4])}, true
		}

	case Pair{Master: AddrMFD, Slave: AddrNavigation}:
		if f.Control == ControlData && len(d) == touchFrameLen &&
			d[0] == 0x00 && d[1] == logicSwitch && d[2] == logicSWConvert && d[3] == touchPressMarker {
			return Command{Kind: CmdTouch, X: d[4], Y: d[5]}, true
		}
	}
	return Command{}, false
}

const (
	// fahrenheitPerTenth is one tenth of a °C expressed in °F.
	fahrenheitPerTenth = 0.18
	halfDegree         = 5
)

// EncodeTargetTemp converts a set point in tenths of °C to the A/C
// amplifier code. The amplifier counts in °F steps starting at 0x22 for
// 18 °C (65 °F), so the offset is measured from that base.
func EncodeTargetTemp(tenths int) byte {
	t := clamp(tenths, TargetTempMin, TargetTempMax)
	stepsF := float64(t-TargetTempMin) * fahrenheitPerTenth
	code := tempBase + int(math.Round(stepsF))
	return byte(clamp(code, tempCodeMin, tempCodeMax))
}

// DecodeTargetTemp converts an A/C amplifier code to tenths of °C,
// rounded to the half degree the climate panel displays. Whole degrees
// survive an encode/decode round trip.
func DecodeTargetTemp(code byte) int {
	tenths := float64(TargetTempMin) + float64(int(code)-tempBase)/fahrenheitPerTenth
	return int(math.Round(tenths/halfDegree)) * halfDegree
}

func audioFrame(param, value byte) Frame {
	return Frame{
		Master:  AddrHeadUnit,
		Slave:   AddrDSPAmp,
		Control: ControlData,
		Data:    []byte{0x00, logicCmdSwitch, logicAudioAmp, param, value},
	}
}

func climateButtonFrame(master Address, code byte) Frame {
	return Frame{
		Master:  master,
		Slave:   AddrHVAC,
		Control: ControlCommand,
		Data:    []byte{buttonPress, 0x00, buttonClimateGroup, code, buttonSuffixAudio},
	}
}

func decodeAudioParam(param, value byte) (Command, bool) {
	switch param {
	case paramVolume:
		return Command{Kind: CmdSetVolume, Value: int(value & volumeMask)}, true
	case paramVolumeUp:
		return Command{Kind: CmdVolumeUp, Value: int(value)}, true
	case paramVolumeDown:
		return Command{Kind: CmdVolumeDown, Value: int(value)}, true
	case paramMute:
		return Command{Kind: CmdMuteToggle}, true
	case paramBass:
		return Command{Kind: CmdSetBass, Value: int(value) - toneCenter}, true
	case paramMid:
		return Command{Kind: CmdSetMid, Value: int(value) - toneCenter}, true
	case paramTreble:
		return Command{Kind: CmdSetTreble, Value: int(value) - toneCenter}, true
	case paramBalance:
		return Command{Kind: CmdSetBalance, Value: int(value) - toneCenter}, true
	case paramFader:
		return Command{Kind: CmdSetFader, Value: int(value) - toneCenter}, true
	}
	return Command{}, false
}

func decodeClimateButton(d []byte) (CommandKind, bool) {
	if len(d) != buttonFrameLen || d[0] != buttonPress || d[1] != 0x00 ||
		d[2] != buttonClimateGroup || d[4] != buttonSuffixAudio {
		return 0, false
	}
	for kind, code := range climateButtons {
		if code == d[3] {
			return kind, true
		}
	}
	return 0, false
}

// toneByte maps a signed level to the center-0x10 encoding.
func toneByte(level, limit int) byte {
	return byte(toneCenter + clamp(level, -limit, limit))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
