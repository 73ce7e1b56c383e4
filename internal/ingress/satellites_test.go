package ingress

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

func TestLightSensorHysteresis(t *testing.T) {
	s := NewLightSensor()

	steps := []struct {
		level   int
		daytime bool
	}{
		{level: 350, daytime: false}, // first reading below day threshold
		{level: 450, daytime: true},
		{level: 320, daytime: true}, // inside the band
		{level: 250, daytime: false},
		{level: 380, daytime: false}, // inside the band
		{level: 400, daytime: true},
	}

	for i, step := range steps {
		actions, err := s.HandleSatellite(json.RawMessage(`{"level":` + itoa(step.level) + `}`))
		if err != nil {
			t.Fatalf("step %d: error = %v", i, err)
		}
		if len(actions) != 1 {
			t.Fatalf("step %d: got %d actions", i, len(actions))
		}
		got := actions[0].(state.SetLightSensor)
		if got.Daytime != step.daytime || got.Level != step.level {
			t.Errorf("step %d: got %+v, want daytime %v", i, got, step.daytime)
		}
	}
}

func TestLightSensorPayloads(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		actions int
		wantErr bool
	}{
		{name: "level and rain", payload: `{"level":900,"rain":true}`, actions: 2},
		{name: "rain only", payload: `{"rain":false}`, actions: 1},
		{name: "empty", payload: `{}`, wantErr: true},
		{name: "malformed", payload: `{"level":"bright"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actions, err := NewLightSensor().HandleSatellite(json.RawMessage(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("error = %v, want ErrInvalidPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if len(actions) != tt.actions {
				t.Errorf("got %d actions, want %d", len(actions), tt.actions)
			}
		})
	}
}

func TestSatelliteRouting(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelLightSensor, `{"level":120,"rain":true}`)
	f.feed(t, transport.ChannelLPG, `{"active":true,"level":38.5}`)

	s := f.store.State()
	if s.Sensors.IsDaytime || !s.Sensors.IsRaining || s.Sensors.LightLevel != 120 {
		t.Errorf("Sensors = %+v", s.Sensors)
	}
	if !s.Vehicle.LPGSignalled || s.Vehicle.LPGLevel != 38.5 {
		t.Errorf("LPG = %v/%v", s.Vehicle.LPGSignalled, s.Vehicle.LPGLevel)
	}
	if f.ctrl.Stats().Satellite != 2 {
		t.Errorf("Satellite = %d, want 2", f.ctrl.Stats().Satellite)
	}
}

func TestLPGControllerRequiresActive(t *testing.T) {
	if _, err := (LPGController{}).HandleSatellite(json.RawMessage(`{"level":10}`)); !errors.Is(err, ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload", err)
	}
}

func TestFuelFlow(t *testing.T) {
	tests := []struct {
		injector float64
		want     float64
	}{
		{0, 0},
		{50, 0},
		{250, 2},
		{1000, 8},
		{10000, 30},
	}
	for _, tt := range tests {
		if got := fuelFlow(tt.injector); !approx(got, tt.want) {
			t.Errorf("fuelFlow(%v) = %v, want %v", tt.injector, got, tt.want)
		}
	}
}

func itoa(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
