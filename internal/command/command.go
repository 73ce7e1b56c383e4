// Package command turns named remote commands into user-origin state
// actions. The HTTP API and the MQTT command subscriber share it so both
// surfaces accept the same catalogue.
package command

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// Command is a named request with loosely typed parameters, as received
// over JSON.
type Command struct {
	Name       string         `json:"command"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

type builder func(p params) (state.Action, error)

var catalogue = map[string]builder{
	"set_volume": func(p params) (state.Action, error) {
		v, err := p.getInt("value")
		return state.SetVolume{Volume: v, Origin: state.OriginUser}, err
	},
	"set_mute": func(p params) (state.Action, error) {
		v, err := p.getBool("muted")
		return state.SetMute{Muted: v, Origin: state.OriginUser}, err
	},
	"set_tone": func(p params) (state.Action, error) {
		tone, err := p.getString("tone")
		if err != nil {
			return nil, err
		}
		switch t := state.Tone(tone); t {
		case state.ToneBass, state.ToneMid, state.ToneTreble, state.ToneBalance, state.ToneFader:
			v, err := p.getInt("value")
			return state.SetTone{Tone: t, Value: v, Origin: state.OriginUser}, err
		}
		return nil, fmt.Errorf("%w: tone %q", ErrInvalidParameter, tone)
	},
	"set_audio_source": func(p params) (state.Action, error) {
		v, err := p.getString("source")
		return state.SetAudioSource{Name: v, Origin: state.OriginUser}, err
	},
	"set_target_temp": func(p params) (state.Action, error) {
		v, err := p.getFloat("value")
		return state.SetTargetTemp{Celsius: v, Origin: state.OriginUser}, err
	},
	"set_fan_speed": func(p params) (state.Action, error) {
		v, err := p.getInt("value")
		return state.SetFanSpeed{Speed: v, Origin: state.OriginUser}, err
	},
	"set_air_direction": func(p params) (state.Action, error) {
		v, err := p.getInt("value")
		return state.SetAirDirection{Direction: v, Origin: state.OriginUser}, err
	},
	"set_climate_flag": func(p params) (state.Action, error) {
		flag, err := p.getString("flag")
		if err != nil {
			return nil, err
		}
		switch f := state.ClimateFlag(flag); f {
		case state.FlagAC, state.FlagAuto, state.FlagRecirc, state.FlagDefrost:
			on, err := p.getBool("on")
			return state.SetClimateFlag{Flag: f, On: on, Origin: state.OriginUser}, err
		}
		return nil, fmt.Errorf("%w: flag %q", ErrInvalidParameter, flag)
	},
	"set_drl_mode": func(p params) (state.Action, error) {
		s, err := p.getString("mode")
		if err != nil {
			return nil, err
		}
		mode, err := state.ParseDRLMode(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
		return state.SetDRLMode{Mode: mode, Origin: state.OriginUser}, nil
	},
	"set_time_base": func(p params) (state.Action, error) {
		v, err := p.getInt("seconds")
		return state.SetTimeBase{Seconds: v, Origin: state.OriginUser}, err
	},
	"set_brightness": func(p params) (state.Action, error) {
		v, err := p.getInt("percent")
		return state.SetBrightness{Percent: v, Origin: state.OriginUser}, err
	},
}

// Names returns the accepted command names in sorted order.
func Names() []string {
	names := make([]string, 0, len(catalogue))
	for name := range catalogue {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Action converts c into a user-origin action. Range checks are left to
// the reducers, which clamp.
//
// Returns:
//   - state.Action: The action to enqueue
//   - error: ErrUnknownCommand or ErrInvalidParameter
func (c Command) Action() (state.Action, error) {
	build, ok := catalogue[c.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
	}
	a, err := build(params(c.Parameters))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	return a, nil
}

// Decode parses a JSON parameter object for the named command. An empty
// payload means no parameters.
func Decode(name string, payload []byte) (state.Action, error) {
	var p map[string]any
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidParameter, err)
		}
	}
	return Command{Name: name, Parameters: p}.Action()
}

type params map[string]any

func (p params) lookup(key string) (any, error) {
	v, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q is required", ErrInvalidParameter, key)
	}
	return v, nil
}

func (p params) getFloat(key string) (float64, error) {
	v, err := p.lookup(key)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float64)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q must be a number", ErrInvalidParameter, key)
	}
	return f, nil
}

func (p params) getInt(key string) (int, error) {
	f, err := p.getFloat(key)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidParameter, key)
	}
	return int(f), nil
}

func (p params) getBool(key string) (bool, error) {
	v, err := p.lookup(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q must be a boolean", ErrInvalidParameter, key)
	}
	return b, nil
}

func (p params) getString(key string) (string, error) {
	v, err := p.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %q must be a non-empty string", ErrInvalidParameter, key)
	}
	return s, nil
}
