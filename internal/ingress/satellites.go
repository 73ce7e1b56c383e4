package ingress

import (
	"encoding/json"
	"fmt"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// SatelliteHandler decodes the payload of one satellite channel.
type SatelliteHandler interface {
	HandleSatellite(payload json.RawMessage) ([]state.Action, error)
}

// SatelliteHandlerFunc adapts a function to SatelliteHandler.
type SatelliteHandlerFunc func(payload json.RawMessage) ([]state.Action, error)

// HandleSatellite calls f.
func (f SatelliteHandlerFunc) HandleSatellite(payload json.RawMessage) ([]state.Action, error) {
	return f(payload)
}

func (c *Controller) handleSatellite(ch transport.Channel, payload json.RawMessage) ([]state.Action, error) {
	c.mu.RLock()
	h, ok := c.satellites[ch]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoHandler, int(ch))
	}

	actions, err := safeHandle(h, payload)
	if err != nil {
		c.logger.Warn("satellite handler failed", "channel", ch.String(), "error", err)
		return nil, err
	}
	return actions, nil
}

// safeHandle converts a handler panic into an error.
func safeHandle(h SatelliteHandler, payload json.RawMessage) (actions []state.Action, err error) {
	defer func() {
		if r := recover(); r != nil {
			actions, err = nil, fmt.Errorf("satellite handler panic: %v", r)
		}
	}()
	return h.HandleSatellite(payload)
}

// Light sensor thresholds on the 0..1023 ADC scale.
const (
	DefaultDayThreshold   = 400
	DefaultNightThreshold = 300
)

// LightSensor decodes the ambient light satellite. Daytime switches with
// hysteresis: on at DayThreshold and above, off below NightThreshold.
//
// Payload: {"level": 0..1023, "rain": bool}. Rain is optional.
type LightSensor struct {
	DayThreshold   int
	NightThreshold int

	known   bool
	daytime bool
}

// NewLightSensor creates a light sensor handler with default thresholds.
func NewLightSensor() *LightSensor {
	return &LightSensor{
		DayThreshold:   DefaultDayThreshold,
		NightThreshold: DefaultNightThreshold,
	}
}

type lightPayload struct {
	Level *int  `json:"level"`
	Rain  *bool `json:"rain"`
}

// HandleSatellite implements SatelliteHandler.
func (s *LightSensor) HandleSatellite(payload json.RawMessage) ([]state.Action, error) {
	var p lightPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: light sensor: %w", ErrInvalidPayload, err)
	}
	if p.Level == nil && p.Rain == nil {
		return nil, fmt.Errorf("%w: light sensor: no fields", ErrInvalidPayload)
	}

	var actions []state.Action
	if p.Level != nil {
		level := *p.Level
		switch {
		case !s.known:
			s.daytime = level >= s.DayThreshold
			s.known = true
		case s.daytime && level < s.NightThreshold:
			s.daytime = false
		case !s.daytime && level >= s.DayThreshold:
			s.daytime = true
		}
		actions = append(actions, state.SetLightSensor{Level: level, Daytime: s.daytime, Origin: state.OriginHardware})
	}
	if p.Rain != nil {
		actions = append(actions, state.SetRain{Raining: *p.Rain, Origin: state.OriginHardware})
	}
	return actions, nil
}

// LPGController decodes the LPG controller satellite.
//
// Payload: {"active": bool, "level": litres}. Level is optional.
type LPGController struct{}

type lpgPayload struct {
	Active *bool    `json:"active"`
	Level  *float64 `json:"level"`
}

// HandleSatellite implements SatelliteHandler.
func (LPGController) HandleSatellite(payload json.RawMessage) ([]state.Action, error) {
	var p lpgPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: lpg: %w", ErrInvalidPayload, err)
	}
	if p.Active == nil {
		return nil, fmt.Errorf("%w: lpg: missing active", ErrInvalidPayload)
	}

	actions := []state.Action{state.SetLPGSignal{Active: *p.Active, Origin: state.OriginHardware}}
	if p.Level != nil {
		actions = append(actions, state.SetMeasurement{
			Measurement: state.MeasLPGLevel,
			Value:       *p.Level,
			Origin:      state.OriginHardware,
		})
	}
	return actions, nil
}

// RegisterDefaults installs the built-in satellite handlers.
func (c *Controller) RegisterDefaults() error {
	if err := c.RegisterSatellite(transport.ChannelLightSensor, NewLightSensor()); err != nil {
		return err
	}
	return c.RegisterSatellite(transport.ChannelLPG, LPGController{})
}
