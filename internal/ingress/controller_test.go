package ingress

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/can"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

type fixture struct {
	store *state.Store
	input *transport.MockInput
	flow  *transport.MockOutput
	ctrl  *Controller
	clock time.Time
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		store: state.NewStore(state.Default(), nil),
		input: transport.NewMockInput(),
		flow:  transport.NewMockOutput(),
		clock: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	f.ctrl = New(f.store, f.input, cfg, nil)
	f.ctrl.now = func() time.Time { return f.clock }
	f.ctrl.SetFlowControlOutput(f.flow)
	if err := f.ctrl.RegisterDefaults(); err != nil {
		t.Fatalf("RegisterDefaults() error = %v", err)
	}
	return f
}

// feed injects messages on ch and processes them.
func (f *fixture) feed(t *testing.T, ch transport.Channel, payloads ...string) {
	t.Helper()
	for _, p := range payloads {
		f.input.Inject(transport.RawMessage{Channel: ch, Payload: json.RawMessage(p)})
	}
	f.ctrl.ProcessPending()
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestIceStatusFromBusA(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelAVC, `{"m":"110","s":"490","c":0,"d":["00","46","C8","00"]}`)

	s := f.store.State()
	if !s.Vehicle.IceRunning {
		t.Error("IceRunning = false, want true")
	}
	if s.Input.HybridDebug != "00 46 C8 00" {
		t.Errorf("HybridDebug = %q", s.Input.HybridDebug)
	}

	f.feed(t, transport.ChannelAVC, `{"m":"110","s":"490","c":0,"d":["00","46","C1","00"]}`)
	if f.store.State().Vehicle.IceRunning {
		t.Error("IceRunning = true after off marker")
	}
}

func TestRepeatFramesIgnored(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelAVC, `{"m":"110","s":"490","c":0,"d":["00","46","C8","00"]}`)
	before := f.store.State().Version

	f.feed(t, transport.ChannelAVC, `{"m":"110","s":"490","c":0,"d":["00","46","C8","00"],"cnt":2}`)

	if f.store.State().Version != before {
		t.Error("repeat frame changed state")
	}
	if f.ctrl.Stats().Repeats != 1 {
		t.Errorf("Repeats = %d, want 1", f.ctrl.Stats().Repeats)
	}
}

func TestCountedFrameWithNewContentDelivered(t *testing.T) {
	tests := []struct {
		name     string
		payloads []string
		running  bool
	}{
		{
			name:     "first frame of a run arrives counted",
			payloads: []string{`{"m":"110","s":"490","c":0,"d":["00","46","C8","00"],"cnt":2}`},
			running:  true,
		},
		{
			name: "change folded with its repeats",
			payloads: []string{
				`{"m":"110","s":"490","c":0,"d":["00","46","C8","00"]}`,
				`{"m":"110","s":"490","c":0,"d":["00","46","C1","00"],"cnt":2}`,
			},
			running: false,
		},
		{
			name: "other route does not mask a repeat",
			payloads: []string{
				`{"m":"110","s":"490","c":0,"d":["00","46","C8","00"]}`,
				`{"m":"210","s":"490","c":0,"d":["00","46","C1","00"],"cnt":3}`,
			},
			running: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			for _, p := range tt.payloads {
				f.feed(t, transport.ChannelAVC, p)
			}
			if got := f.store.State().Vehicle.IceRunning; got != tt.running {
				t.Errorf("IceRunning = %v, want %v", got, tt.running)
			}
			if n := f.ctrl.Stats().Repeats; n != 0 {
				t.Errorf("Repeats = %d, want 0", n)
			}
		})
	}
}

func TestObservedTargetTempKeepsHalfDegrees(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelAVC, `{"m":"110","s":"130","c":0,"d":["03","28"]}`)

	if got := f.store.State().Climate.TargetTemp; !approx(got, 21.5) {
		t.Errorf("TargetTemp = %v, want 21.5", got)
	}
}

func TestObservedHeadUnitCommand(t *testing.T) {
	f := newFixture(t, Config{})

	var origins []state.Origin
	f.store.Subscribe(state.SliceAudio, func(c state.Change) {
		origins = append(origins, c.Action.Source())
	})

	f.feed(t, transport.ChannelAVC, `{"m":"190","s":"440","c":15,"d":["00","25","74","90","28"]}`)

	if got := f.store.State().Audio.Volume; got != 40 {
		t.Fatalf("Volume = %d, want 40", got)
	}
	if len(origins) != 1 || origins[0] != state.OriginHardware {
		t.Errorf("origins = %v, want one hardware change", origins)
	}
}

func TestBatterySOCFilter(t *testing.T) {
	tests := []struct {
		name     string
		socByte  string
		wantSOC  float64
		filtered uint64
	}{
		{name: "accepted", socByte: "A0", wantSOC: 0.8},
		{name: "below window", socByte: "10", wantSOC: 0.6, filtered: 1},
		{name: "above window", socByte: "C0", wantSOC: 0.6, filtered: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.feed(t, transport.ChannelCAN, `{"i":"3CB","d":["69","60","00","`+tt.socByte+`","1C","1D","8A"]}`)

			s := f.store.State()
			if !approx(s.Energy.SOC, tt.wantSOC) {
				t.Errorf("SOC = %v, want %v", s.Energy.SOC, tt.wantSOC)
			}
			if s.Energy.BatteryTemp != 28 || s.Energy.BatteryTempMax != 29 {
				t.Errorf("battery temps = %v/%v, want 28/29", s.Energy.BatteryTemp, s.Energy.BatteryTempMax)
			}
			if got := f.ctrl.Stats().Filtered; got != tt.filtered {
				t.Errorf("Filtered = %d, want %d", got, tt.filtered)
			}
		})
	}
}

func TestOutOfSpecSignalNotDispatched(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelCAN, `{"i":"038","d":["00","FF"]}`)

	if f.store.State().Vehicle.RPM != 0 {
		t.Errorf("RPM = %v, want untouched", f.store.State().Vehicle.RPM)
	}
	if f.ctrl.Stats().OutOfSpec != 1 {
		t.Errorf("OutOfSpec = %d, want 1", f.ctrl.Stats().OutOfSpec)
	}
}

func TestBroadcastSignals(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelCAN,
		`{"i":"0B4","d":["00","00","00","00","00","13","88"]}`, // 50 km/h
		`{"i":"120","d":["00","00","00","00","00","03"]}`,       // D
		`{"i":"520","d":["01","F4"]}`,                           // 500 counts
		`{"i":"3B6","d":["00","00","00","00","00","48","00"]}`,  // engine to wheels and battery
		`{"i":"7FF","d":[]}`,                                    // unknown
	)

	s := f.store.State()
	if !approx(s.Vehicle.SpeedKph, 50) {
		t.Errorf("SpeedKph = %v, want 50", s.Vehicle.SpeedKph)
	}
	if s.Vehicle.Gear != state.GearDrive {
		t.Errorf("Gear = %v, want D", s.Vehicle.Gear)
	}
	if !approx(s.Vehicle.FuelFlowLph, 4) {
		t.Errorf("FuelFlowLph = %v, want 4", s.Vehicle.FuelFlowLph)
	}
	if s.Energy.FlowFlags != 0x48 || !s.Energy.EngineToBattery {
		t.Errorf("FlowFlags = %#x, EngineToBattery = %v", s.Energy.FlowFlags, s.Energy.EngineToBattery)
	}
	if f.ctrl.Stats().Unknown != 1 {
		t.Errorf("Unknown = %d, want 1", f.ctrl.Stats().Unknown)
	}
}

func TestMultiFrameSOC(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelCAN,
		`{"i":"7EA","d":["10","12","61","CF","A0","01","02","03"]}`,
		`{"i":"7EA","d":["21","04","05","06","07","08","09","0A"]}`,
		`{"i":"7EA","d":["22","0B","0C","0D","0E","0F","10","11"]}`,
	)

	s := f.store.State()
	if !approx(s.Energy.SOC, 0.8) {
		t.Errorf("SOC = %v, want 0.8", s.Energy.SOC)
	}
	if !approx(s.Energy.DeltaSOC, 0.06) {
		t.Errorf("DeltaSOC = %v, want 0.06", s.Energy.DeltaSOC)
	}

	sent := f.flow.SentOn(transport.ChannelCAN)
	if len(sent) != 1 {
		t.Fatalf("flow control frames = %d, want 1", len(sent))
	}
	fc, ok := sent[0].Payload.(can.Frame)
	if !ok || fc.ID != can.ECUHybrid || fc.Data[0] != 0x30 {
		t.Errorf("flow control = %+v", sent[0].Payload)
	}
	if st := f.ctrl.Stats(); st.Diagnostics != 1 || st.FlowControls != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestMultiFrameOutOfOrderDropped(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelCAN,
		`{"i":"7EA","d":["10","12","61","CF","A0","01","02","03"]}`,
		`{"i":"7EA","d":["22","0B","0C","0D","0E","0F","10","11"]}`,
		`{"i":"7EA","d":["21","04","05","06","07","08","09","0A"]}`,
	)

	if !approx(f.store.State().Energy.SOC, 0.6) {
		t.Errorf("SOC = %v, want default", f.store.State().Energy.SOC)
	}
	if f.ctrl.Stats().DecodeErrors != 2 {
		t.Errorf("DecodeErrors = %d, want 2", f.ctrl.Stats().DecodeErrors)
	}
}

func TestMultiFrameTimeoutExpires(t *testing.T) {
	f := newFixture(t, Config{AssemblyTimeout: 100 * time.Millisecond})

	f.feed(t, transport.ChannelCAN, `{"i":"7EA","d":["10","12","61","CF","A0","01","02","03"]}`)
	f.clock = f.clock.Add(time.Second)
	f.ctrl.ProcessPending()

	if f.ctrl.Stats().DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1 expired assembly", f.ctrl.Stats().DecodeErrors)
	}
}

func TestSystemMessages(t *testing.T) {
	f := newFixture(t, Config{})

	f.feed(t, transport.ChannelSystem, `{"msg":"GATEWAY_READY","ver":"2.1","can":"CAN_READY","avc":"AVC_READY"}`)

	c := f.store.State().Connection
	if !c.GatewayConnected || c.GatewayVersion != "2.1" || !c.BusAReady || !c.BusBReady {
		t.Errorf("Connection = %+v", c)
	}

	f.feed(t, transport.ChannelSystem, `{"msg":"CAN error: bus off"}`)
	if got := f.store.State().Connection.LastError; got != "CAN error: bus off" {
		t.Errorf("LastError = %q", got)
	}
}

func TestDecodeFailuresDropped(t *testing.T) {
	f := newFixture(t, Config{})
	before := f.store.State().Version

	f.feed(t, transport.ChannelAVC, `{"m":"FFFF"}`)
	f.feed(t, transport.ChannelCAN, `not json`)
	f.feed(t, transport.ChannelSystem, `[1,2]`)
	f.feed(t, transport.Channel(50), `{}`)
	f.feed(t, transport.Channel(150), `{}`)

	st := f.ctrl.Stats()
	if st.DecodeErrors != 3 {
		t.Errorf("DecodeErrors = %d, want 3", st.DecodeErrors)
	}
	if st.Unknown != 2 {
		t.Errorf("Unknown = %d, want 2", st.Unknown)
	}
	if st.Received != 5 || st.Processed != 0 {
		t.Errorf("Received = %d, Processed = %d", st.Received, st.Processed)
	}
	if f.store.State().Version != before {
		t.Error("failed messages changed state")
	}
}

func TestProcessPendingBounded(t *testing.T) {
	f := newFixture(t, Config{MaxPerTick: 2})
	for i := 0; i < 5; i++ {
		f.input.Inject(transport.RawMessage{Channel: transport.ChannelSystem, Payload: json.RawMessage(`{}`)})
	}

	for i, want := range []int{2, 2, 1, 0} {
		if got := f.ctrl.ProcessPending(); got != want {
			t.Errorf("call %d: ProcessPending() = %d, want %d", i, got, want)
		}
	}
}

func TestRegisterSatellite(t *testing.T) {
	f := newFixture(t, Config{})

	err := f.ctrl.RegisterSatellite(transport.ChannelAVC, LPGController{})
	if !errors.Is(err, ErrNotSatellite) {
		t.Errorf("RegisterSatellite(avc) error = %v, want ErrNotSatellite", err)
	}
	err = f.ctrl.RegisterSatellite(transport.ChannelLightSensor, NewLightSensor())
	if !errors.Is(err, ErrDuplicateHandler) {
		t.Errorf("duplicate RegisterSatellite() error = %v, want ErrDuplicateHandler", err)
	}

	err = f.ctrl.RegisterSatellite(transport.Channel(120), SatelliteHandlerFunc(func(json.RawMessage) ([]state.Action, error) {
		panic("broken unit")
	}))
	if err != nil {
		t.Fatalf("RegisterSatellite() error = %v", err)
	}
	f.feed(t, transport.Channel(120), `{}`)
	if f.ctrl.Stats().DecodeErrors != 1 {
		t.Errorf("handler panic not counted: %+v", f.ctrl.Stats())
	}
}
