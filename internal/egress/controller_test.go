package egress

import (
	"errors"
	"testing"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/avclan"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

func newController(t *testing.T) (*state.Store, *transport.MockOutput, *Controller) {
	t.Helper()
	store := state.NewStore(state.Default(), nil)
	out := transport.NewMockOutput()
	c := New(store, out, nil)
	if err := c.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(c.Stop)
	return store, out, c
}

func TestUserVolumeSendsOneCommand(t *testing.T) {
	store, out, c := newController(t)

	store.Dispatch(state.SetVolume{Volume: 40, Origin: state.OriginUser})

	sent := out.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d commands, want 1", len(sent))
	}
	want, err := avclan.Encode(avclan.Command{Kind: avclan.CmdSetVolume, Value: 40})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	frame, ok := sent[0].Payload.(avclan.Frame)
	if !ok || !frame.Equal(want) {
		t.Errorf("payload = %v, want %v", sent[0].Payload, want)
	}
	if sent[0].Channel != transport.ChannelAVC || sent[0].Command != "set_volume" {
		t.Errorf("command = %s on %s", sent[0].Command, sent[0].Channel)
	}
	if st := c.Stats(); st.Commands != 1 || st.AVC != 1 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestHardwareAndInternalChangesAreSilent(t *testing.T) {
	store, out, c := newController(t)

	store.Dispatch(state.SetVolume{Volume: 40, Origin: state.OriginHardware})
	store.Dispatch(state.SetTargetTemp{Celsius: 25, Origin: state.OriginHardware})
	store.Dispatch(state.SetDRLActive{Active: true, Origin: state.OriginInternal})

	if n := len(out.Sent()); n != 0 {
		t.Fatalf("sent %d commands, want 0", n)
	}
	if st := c.Stats(); st.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", st.Skipped)
	}
}

func TestClimateCommands(t *testing.T) {
	tests := []struct {
		name   string
		action state.Action
		want   []avclan.Command
	}{
		{
			name:   "target temperature",
			action: state.SetTargetTemp{Celsius: 24, Origin: state.OriginUser},
			want:   []avclan.Command{{Kind: avclan.CmdSetTargetTemp, Value: 240}},
		},
		{
			name:   "target temperature keeps half degrees",
			action: state.SetTargetTemp{Celsius: 21.5, Origin: state.OriginUser},
			want:   []avclan.Command{{Kind: avclan.CmdSetTargetTemp, Value: 215}},
		},
		{
			name:   "fan speed",
			action: state.SetFanSpeed{Speed: 5, Origin: state.OriginUser},
			want:   []avclan.Command{{Kind: avclan.CmdSetFanSpeed, Value: 5}},
		},
		{
			name:   "ac off toggles",
			action: state.SetClimateFlag{Flag: state.FlagAC, On: false, Origin: state.OriginUser},
			want:   []avclan.Command{{Kind: avclan.CmdACToggle}},
		},
		{
			name:   "recirc on toggles",
			action: state.SetClimateFlag{Flag: state.FlagRecirc, On: true, Origin: state.OriginUser},
			want:   []avclan.Command{{Kind: avclan.CmdRecircToggle}},
		},
		{
			name:   "unchanged value sends nothing",
			action: state.SetTargetTemp{Celsius: 22, Origin: state.OriginUser},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, out, _ := newController(t)
			store.Dispatch(tt.action)

			sent := out.Sent()
			if len(sent) != len(tt.want) {
				t.Fatalf("sent %d commands, want %d", len(sent), len(tt.want))
			}
			for i, want := range tt.want {
				frame, ok := sent[i].Payload.(avclan.Frame)
				if !ok {
					t.Fatalf("payload %T is not a frame", sent[i].Payload)
				}
				got, ok := avclan.DecodeCommand(frame)
				if !ok || got.Kind != want.Kind || got.Value != want.Value {
					t.Errorf("command %d = %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestAudioToneCommands(t *testing.T) {
	store, out, _ := newController(t)

	store.Dispatch(state.SetTone{Tone: state.ToneBass, Value: 3, Origin: state.OriginUser})
	store.Dispatch(state.SetMute{Muted: true, Origin: state.OriginUser})

	sent := out.Sent()
	if len(sent) != 2 {
		t.Fatalf("sent %d commands, want 2", len(sent))
	}
	if sent[0].Command != "set_bass" || sent[1].Command != "mute_toggle" {
		t.Errorf("commands = %s, %s", sent[0].Command, sent[1].Command)
	}
}

func TestRuleDRLCommand(t *testing.T) {
	store, out, _ := newController(t)

	store.Dispatch(state.SetDRLActive{Active: true, Origin: state.OriginRule})

	sent := out.SentOn(transport.ChannelDRL)
	if len(sent) != 1 {
		t.Fatalf("sent %d DRL commands, want 1", len(sent))
	}
	if p, ok := sent[0].Payload.(drlPayload); !ok || !p.DRL || sent[0].Command != CommandSetDRL {
		t.Errorf("command = %+v", sent[0])
	}
}

func TestSendFailureCounted(t *testing.T) {
	store, out, c := newController(t)
	out.SetError(errors.New("link down"))

	store.Dispatch(state.SetVolume{Volume: 10, Origin: state.OriginUser})

	if st := c.Stats(); st.SendFailures != 1 || st.Commands != 0 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestResyncSendsFullSatelliteState(t *testing.T) {
	_, out, c := newController(t)

	c.Resync(state.Default())

	if n := len(out.SentOn(transport.ChannelDRL)); n != 1 {
		t.Errorf("DRL commands = %d, want 1", n)
	}
	vfd := out.SentOn(transport.ChannelVFD)
	if len(vfd) != 3 {
		t.Fatalf("VFD commands = %d, want 3", len(vfd))
	}
	for i, want := range []string{VFDMessageEnergy, VFDMessageState, VFDMessageConfig} {
		if vfd[i].Command != want {
			t.Errorf("VFD command %d = %s, want %s", i, vfd[i].Command, want)
		}
	}
}

func TestStartTwice(t *testing.T) {
	_, _, c := newController(t)
	if err := c.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("Start() error = %v, want ErrAlreadyStarted", err)
	}
}
