package can

import (
	"errors"
	"math"
	"testing"
)

func findSignal(t *testing.T, signals []Signal, name Name) Signal {
	t.Helper()
	for _, s := range signals {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("signal %s not decoded (got %v)", name, signals)
	return Signal{}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		frame     Frame
		signal    Name
		want      float64
		outOfSpec bool
	}{
		{
			name:   "battery current discharging",
			frame:  Frame{ID: IDBattery, Data: []byte{0x00, 0x64, 0x00, 0xD2, 0x00}},
			signal: SignalBatteryCurrent,
			want:   10,
		},
		{
			name:   "battery current charging is negative",
			frame:  Frame{ID: IDBattery, Data: []byte{0x0F, 0x9C, 0x00, 0xD2, 0x00}},
			signal: SignalBatteryCurrent,
			want:   -10,
		},
		{
			name:   "battery voltage",
			frame:  Frame{ID: IDBattery, Data: []byte{0x00, 0x64, 0x00, 0xD2, 0x00}},
			signal: SignalBatteryVoltage,
			want:   210,
		},
		{
			name:      "startup voltage placeholder",
			frame:     Frame{ID: IDBattery, Data: []byte{0x00, 0x00, 0x00, 0x00, 0x00}},
			signal:    SignalBatteryVoltage,
			want:      0,
			outOfSpec: true,
		},
		{
			name:   "soc half percent steps",
			frame:  Frame{ID: IDBatteryState, Data: []byte{0x69, 0x60, 0x00, 0x79, 0x1C, 0x1D, 0x8A}},
			signal: SignalSOC,
			want:   60.5,
		},
		{
			name:   "signed battery temperature",
			frame:  Frame{ID: IDBatteryState, Data: []byte{0x69, 0x60, 0x00, 0x79, 0xFB, 0x1D, 0x8A}},
			signal: SignalBatteryTemp,
			want:   -5,
		},
		{
			name:      "soc sentinel",
			frame:     Frame{ID: IDBatteryState, Data: []byte{0x69, 0x60, 0x00, 0xFF, 0x1C, 0x1D, 0x8A}},
			signal:    SignalSOC,
			want:      127.5,
			outOfSpec: true,
		},
		{
			name:   "fault code",
			frame:  Frame{ID: IDBatteryFault, Data: []byte{0x0A, 0xF0, 0x00, 0x00, 0x00}},
			signal: SignalFaultCode,
			want:   0x0AF0,
		},
		{
			name:   "energy flow flags",
			frame:  Frame{ID: IDEnergyFlow, Data: []byte{0, 0, 0, 0, 0, 0x18, 0}},
			signal: SignalFlowFlags,
			want:   float64(FlowEngineToWheels | FlowBatteryToMotor),
		},
		{
			name:   "injector time",
			frame:  Frame{ID: IDInjector, Data: []byte{0x03, 0xE8}},
			signal: SignalInjectorTime,
			want:   1000,
		},
		{
			name:   "throttle",
			frame:  Frame{ID: IDThrottle, Data: []byte{0, 0, 0, 0, 0, 0, 0x64}},
			signal: SignalThrottle,
			want:   100,
		},
		{
			name:   "brake",
			frame:  Frame{ID: IDBrake, Data: []byte{0, 0, 0, 0, 0x40}},
			signal: SignalBrake,
			want:   64,
		},
		{
			name:   "fuel level",
			frame:  Frame{ID: IDFuelLevel, Data: []byte{0x00, 0x1E}},
			signal: SignalFuelLevel,
			want:   30,
		},
		{
			name:   "engine rpm",
			frame:  Frame{ID: IDEngineRPM, Data: []byte{0x00, 0x32}},
			signal: SignalRPM,
			want:   1600,
		},
		{
			name:      "cold coolant outside accepted range",
			frame:     Frame{ID: IDEngineTemp, Data: []byte{0x14}},
			signal:    SignalCoolantTemp,
			want:      20,
			outOfSpec: true,
		},
		{
			name:   "vehicle speed",
			frame:  Frame{ID: IDSpeed, Data: []byte{0, 0, 0, 0, 0, 0x13, 0x88, 0}},
			signal: SignalSpeed,
			want:   50,
		},
		{
			name:   "gear drive",
			frame:  Frame{ID: IDGear, Data: []byte{0, 0, 0, 0, 0, 0x33}},
			signal: SignalGear,
			want:   GearDrive,
		},
		{
			name:      "gear invalid nibble",
			frame:     Frame{ID: IDGear, Data: []byte{0, 0, 0, 0, 0, 0x0F}},
			signal:    SignalGear,
			want:      15,
			outOfSpec: true,
		},
		{
			name:   "pack temperature",
			frame:  Frame{ID: IDPackTemp, Data: []byte{0, 0, 0x41, 0, 0x46}},
			signal: SignalPackTempMax,
			want:   30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signals, err := Decode(tt.frame)
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			s := findSignal(t, signals, tt.signal)
			if math.Abs(s.Value-tt.want) > 1e-9 {
				t.Errorf("%s = %v, want %v", tt.signal, s.Value, tt.want)
			}
			if s.OutOfSpec != tt.outOfSpec {
				t.Errorf("%s OutOfSpec = %v, want %v", tt.signal, s.OutOfSpec, tt.outOfSpec)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantErr error
	}{
		{"unknown id", Frame{ID: 0x3C8, Data: []byte{1, 2, 3}}, ErrUnknownID},
		{"extended frame", Frame{ID: IDBattery, Extended: true, Data: []byte{0, 0, 0, 0, 0}}, ErrUnknownID},
		{"short frame", Frame{ID: IDBatteryState, Data: []byte{0x69, 0x60}}, ErrShortFrame},
		{"empty frame", Frame{ID: IDEngineTemp}, ErrShortFrame},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.frame); !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
