package transport

import (
	"errors"
	"testing"
	"time"
)

func TestParseEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		channel Channel
		ts      time.Time
		seq     int64 // -1 when absent
		payload string
		wantErr bool
	}{
		{
			name:    "avc message",
			line:    `{"id":2,"ts":1714564800123,"seq":17,"d":{"m":"190","s":"490","c":[1,2]}}`,
			channel: ChannelAVC,
			ts:      time.UnixMilli(1714564800123).UTC(),
			seq:     17,
			payload: `{"m":"190","s":"490","c":[1,2]}`,
		},
		{
			name:    "no timestamp or sequence",
			line:    `{"id":1,"d":{"i":"3CB","d":[0,1]}}`,
			channel: ChannelCAN,
			seq:     -1,
			payload: `{"i":"3CB","d":[0,1]}`,
		},
		{
			name:    "satellite with trailing newline",
			line:    "{\"id\":107,\"d\":{\"level\":512}}\n",
			channel: ChannelLightSensor,
			seq:     -1,
			payload: `{"level":512}`,
		},
		{name: "missing id", line: `{"d":{}}`, wantErr: true},
		{name: "negative id", line: `{"id":-1,"d":{}}`, wantErr: true},
		{name: "not json", line: `hello`, wantErr: true},
		{name: "empty", line: "  ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseEnvelope([]byte(tt.line))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidEnvelope) {
					t.Fatalf("ParseEnvelope() error = %v, want ErrInvalidEnvelope", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEnvelope() error = %v", err)
			}
			if msg.Channel != tt.channel {
				t.Errorf("Channel = %v, want %v", msg.Channel, tt.channel)
			}
			if !msg.Timestamp.Equal(tt.ts) {
				t.Errorf("Timestamp = %v, want %v", msg.Timestamp, tt.ts)
			}
			switch {
			case tt.seq < 0 && msg.Seq != nil:
				t.Errorf("Seq = %d, want nil", *msg.Seq)
			case tt.seq >= 0 && (msg.Seq == nil || int64(*msg.Seq) != tt.seq):
				t.Errorf("Seq = %v, want %d", msg.Seq, tt.seq)
			}
			if string(msg.Payload) != tt.payload {
				t.Errorf("Payload = %s, want %s", msg.Payload, tt.payload)
			}
		})
	}
}

func TestOutgoingCommandMarshalLine(t *testing.T) {
	tests := []struct {
		name string
		cmd  OutgoingCommand
		want string
	}{
		{
			name: "vfd status",
			cmd:  OutgoingCommand{Channel: ChannelVFD, Command: "S", Payload: map[string]any{"gear": "D"}},
			want: `{"id":110,"cmd":"S","d":{"gear":"D"}}` + "\n",
		},
		{
			name: "nil payload",
			cmd:  OutgoingCommand{Channel: ChannelDRL, Command: "state"},
			want: `{"id":106,"cmd":"state","d":{}}` + "\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cmd.MarshalLine()
			if err != nil {
				t.Fatalf("MarshalLine() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("MarshalLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOutgoingCommandMarshalLineError(t *testing.T) {
	cmd := OutgoingCommand{Channel: ChannelVFD, Command: "E", Payload: func() {}}
	if _, err := cmd.MarshalLine(); err == nil {
		t.Fatal("MarshalLine() should fail for unencodable payload")
	}
}

func TestChannelString(t *testing.T) {
	tests := []struct {
		ch   Channel
		want string
	}{
		{ChannelSystem, "system"},
		{ChannelCAN, "can"},
		{ChannelAVC, "avc"},
		{ChannelVFD, "vfd"},
		{Channel(103), "satellite_103"},
		{Channel(7), "channel_7"},
	}
	for _, tt := range tests {
		if got := tt.ch.String(); got != tt.want {
			t.Errorf("Channel(%d).String() = %q, want %q", int(tt.ch), got, tt.want)
		}
	}
	if ChannelAVC.IsSatellite() || !ChannelDRL.IsSatellite() {
		t.Error("IsSatellite() mismatch")
	}
}
