package settings

import (
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// Audio holds persisted audio preferences.
type Audio struct {
	Volume  int `json:"volume"`
	Bass    int `json:"bass"`
	Mid     int `json:"mid"`
	Treble  int `json:"treble"`
	Balance int `json:"balance"`
	Fader   int `json:"fader"`
}

// Climate holds persisted climate preferences.
type Climate struct {
	TargetTemp   float64 `json:"target_temp"`
	FanSpeed     int     `json:"fan_speed"`
	AC           bool    `json:"ac"`
	Auto         bool    `json:"auto"`
	Recirc       bool    `json:"recirc"`
	AirDirection int     `json:"air_direction"`
}

// Settings are the persisted user preferences.
type Settings struct {
	Audio         Audio         `json:"audio"`
	Climate       Climate       `json:"climate"`
	DRLMode       state.DRLMode `json:"drl_mode"`
	TimeBase      int           `json:"time_base"`
	VFDBrightness int           `json:"vfd_brightness"`
}

// Defaults returns the preferences of a fresh state.
func Defaults() Settings {
	return FromState(state.Default())
}

// FromState extracts the preferences from a snapshot.
func FromState(s state.AppState) Settings {
	return Settings{
		Audio: Audio{
			Volume:  s.Audio.Volume,
			Bass:    s.Audio.Bass,
			Mid:     s.Audio.Mid,
			Treble:  s.Audio.Treble,
			Balance: s.Audio.Balance,
			Fader:   s.Audio.Fader,
		},
		Climate: Climate{
			TargetTemp:   s.Climate.TargetTemp,
			FanSpeed:     s.Climate.FanSpeed,
			AC:           s.Climate.AC,
			Auto:         s.Climate.Auto,
			Recirc:       s.Climate.Recirc,
			AirDirection: s.Climate.AirDirection,
		},
		DRLMode:       s.Lights.DRLMode,
		TimeBase:      s.Display.PowerChartTimeBase,
		VFDBrightness: s.Satellites.VFD.Brightness,
	}
}

// Actions returns the internal-origin actions that restore s. Out of range
// values are clamped by the reducer.
func (s Settings) Actions() []state.Action {
	const o = state.OriginInternal
	return []state.Action{
		state.SetVolume{Volume: s.Audio.Volume, Origin: o},
		state.SetTone{Tone: state.ToneBass, Value: s.Audio.Bass, Origin: o},
		state.SetTone{Tone: state.ToneMid, Value: s.Audio.Mid, Origin: o},
		state.SetTone{Tone: state.ToneTreble, Value: s.Audio.Treble, Origin: o},
		state.SetTone{Tone: state.ToneBalance, Value: s.Audio.Balance, Origin: o},
		state.SetTone{Tone: state.ToneFader, Value: s.Audio.Fader, Origin: o},
		state.SetTargetTemp{Celsius: s.Climate.TargetTemp, Origin: o},
		state.SetFanSpeed{Speed: s.Climate.FanSpeed, Origin: o},
		state.SetClimateFlag{Flag: state.FlagAC, On: s.Climate.AC, Origin: o},
		state.SetClimateFlag{Flag: state.FlagAuto, On: s.Climate.Auto, Origin: o},
		state.SetClimateFlag{Flag: state.FlagRecirc, On: s.Climate.Recirc, Origin: o},
		state.SetAirDirection{Direction: s.Climate.AirDirection, Origin: o},
		state.SetDRLMode{Mode: s.DRLMode, Origin: o},
		state.SetTimeBase{Seconds: s.TimeBase, Origin: o},
		state.SetBrightness{Percent: s.VFDBrightness, Origin: o},
	}
}

// Dispatcher applies actions. Satisfied by *state.Store.
type Dispatcher interface {
	Dispatch(a state.Action) state.Slices
}

// Apply restores s into the store.
//
// Returns:
//   - state.Slices: Slices changed by the restore
func Apply(d Dispatcher, s Settings) state.Slices {
	var changed state.Slices
	for _, a := range s.Actions() {
		changed |= d.Dispatch(a)
	}
	return changed
}
