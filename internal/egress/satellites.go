package egress

import (
	"math"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// VFD message types.
const (
	VFDMessageEnergy = "E"
	VFDMessageState  = "S"
	VFDMessageConfig = "C"

	// CommandSetDRL switches the daytime running light relay.
	CommandSetDRL = "set_drl"

	// vfdThreshold is the smallest energy change worth a message.
	vfdThreshold = 0.001
)

type drlPayload struct {
	DRL bool `json:"drl"`
}

type vfdEnergyPayload struct {
	Type     string  `json:"t"`
	MGPower  float64 `json:"mg"`
	FuelFlow float64 `json:"fl"`
	Brake    float64 `json:"br"`
	Speed    float64 `json:"spd"`
	SOC      float64 `json:"soc"`
	Petrol   float64 `json:"ptr"`
	LPG      float64 `json:"lpg"`
	ICE      bool    `json:"ice"`
}

type vfdStatePayload struct {
	Type  string `json:"t"`
	Fuel  string `json:"fuel"`
	Gear  string `json:"gear"`
	Ready bool   `json:"rdy"`
}

type vfdConfigPayload struct {
	Type       string `json:"t"`
	TimeBase   int    `json:"tb"`
	Brightness int    `json:"bri"`
}

func drlCommand(l state.LightsState) transport.OutgoingCommand {
	return transport.OutgoingCommand{
		Channel: transport.ChannelDRL,
		Command: CommandSetDRL,
		Payload: drlPayload{DRL: l.DRLActive},
	}
}

// vfdCommands returns the VFD messages whose content changed.
func vfdCommands(prev, next state.VFDState) []transport.OutgoingCommand {
	var cmds []transport.OutgoingCommand
	if energyChanged(prev, next) {
		cmds = append(cmds, vfdEnergyCommand(next))
	}
	if prev.Gear != next.Gear || prev.ActiveFuel != next.ActiveFuel || prev.Ready != next.Ready {
		cmds = append(cmds, vfdStateCommand(next))
	}
	if prev.TimeBase != next.TimeBase || prev.Brightness != next.Brightness {
		cmds = append(cmds, vfdConfigCommand(next))
	}
	return cmds
}

func energyChanged(prev, next state.VFDState) bool {
	pairs := [][2]float64{
		{prev.MGPower, next.MGPower},
		{prev.FuelFlow, next.FuelFlow},
		{prev.Brake, next.Brake},
		{prev.Speed, next.Speed},
		{prev.SOC, next.SOC},
		{prev.PetrolLevel, next.PetrolLevel},
		{prev.LPGLevel, next.LPGLevel},
	}
	for _, p := range pairs {
		if math.Abs(p[0]-p[1]) > vfdThreshold {
			return true
		}
	}
	return prev.ICE != next.ICE
}

func vfdEnergyCommand(v state.VFDState) transport.OutgoingCommand {
	return transport.OutgoingCommand{
		Channel: transport.ChannelVFD,
		Command: VFDMessageEnergy,
		Payload: vfdEnergyPayload{
			Type:     VFDMessageEnergy,
			MGPower:  round3(v.MGPower),
			FuelFlow: round3(v.FuelFlow),
			Brake:    round3(v.Brake),
			Speed:    round3(v.Speed),
			SOC:      round3(v.SOC),
			Petrol:   v.PetrolLevel,
			LPG:      v.LPGLevel,
			ICE:      v.ICE,
		},
	}
}

func vfdStateCommand(v state.VFDState) transport.OutgoingCommand {
	return transport.OutgoingCommand{
		Channel: transport.ChannelVFD,
		Command: VFDMessageState,
		Payload: vfdStatePayload{
			Type:  VFDMessageState,
			Fuel:  string(v.ActiveFuel),
			Gear:  string(v.Gear),
			Ready: v.Ready,
		},
	}
}

func vfdConfigCommand(v state.VFDState) transport.OutgoingCommand {
	return transport.OutgoingCommand{
		Channel: transport.ChannelVFD,
		Command: VFDMessageConfig,
		Payload: vfdConfigPayload{
			Type:       VFDMessageConfig,
			TimeBase:   v.TimeBase,
			Brightness: v.Brightness,
		},
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000 //nolint:mnd // three decimals
}
