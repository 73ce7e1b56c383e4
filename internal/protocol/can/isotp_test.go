package can

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// batteryResponse is a 0x21CF answer split over a first frame and two
// consecutive frames. A = 0xA0, G = 0x32.
var batteryResponse = []Frame{
	{ID: 0x7EA, Data: []byte{0x10, 0x12, 0x61, 0xCF, 0xA0, 0x01, 0x02, 0x03}},
	{ID: 0x7EA, Data: []byte{0x21, 0x04, 0x05, 0x32, 0x07, 0x08, 0x09, 0x0A}},
	{ID: 0x7EA, Data: []byte{0x22, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F, 0x10, 0x11}},
}

func feedAll(t *testing.T, a *Assembler, frames []Frame, step time.Duration) ([]byte, bool, error) {
	t.Helper()
	now := t0
	for i, f := range frames {
		payload, done, err := a.Feed(f, now)
		if err != nil || done {
			if i != len(frames)-1 && err == nil {
				t.Fatalf("payload completed early at frame %d", i)
			}
			return payload, done, err
		}
		now = now.Add(step)
	}
	return nil, false, nil
}

func TestAssemblerMultiFrameSOC(t *testing.T) {
	a := NewAssembler(0)

	payload, done, err := feedAll(t, a, batteryResponse, 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Feed() error: %v", err)
	}
	if !done {
		t.Fatal("Feed() did not complete the payload")
	}
	if len(payload) != 0x12 {
		t.Fatalf("payload length = %d, want %d", len(payload), 0x12)
	}
	if a.Pending() != 0 {
		t.Errorf("Pending() = %d after completion, want 0", a.Pending())
	}

	pid, signals, err := DecodeResponse(0x7EA, payload)
	if err != nil {
		t.Fatalf("DecodeResponse() error: %v", err)
	}
	if pid != PIDHybridBattery {
		t.Errorf("pid = %s, want %s", pid, PIDHybridBattery)
	}
	soc := findSignal(t, signals, SignalDiagSOC)
	if soc.Value != 80 || soc.OutOfSpec {
		t.Errorf("SOC = %+v, want 80%% in spec", soc)
	}
}

func TestAssemblerSingleFrame(t *testing.T) {
	a := NewAssembler(time.Second)

	payload, done, err := a.Feed(Frame{ID: 0x7E8, Data: []byte{0x03, 0x41, 0x46, 0x3C, 0, 0, 0, 0}}, t0)
	if err != nil || !done {
		t.Fatalf("Feed() = done %v, err %v", done, err)
	}
	if want := []byte{0x41, 0x46, 0x3C}; !bytes.Equal(payload, want) {
		t.Errorf("payload = % X, want % X", payload, want)
	}
}

func TestAssemblerNeverReturnsPartialPayload(t *testing.T) {
	ff, cf1, cf2 := batteryResponse[0], batteryResponse[1], batteryResponse[2]

	tests := []struct {
		name    string
		frames  []Frame
		step    time.Duration
		wantErr error
	}{
		{
			name:    "continuation reordered",
			frames:  []Frame{ff, cf2, cf1},
			step:    time.Millisecond,
			wantErr: ErrOutOfSequence,
		},
		{
			name:    "continuation missing",
			frames:  []Frame{ff, cf2},
			step:    time.Millisecond,
			wantErr: ErrOutOfSequence,
		},
		{
			name:    "continuation repeated",
			frames:  []Frame{ff, cf1, cf1, cf2},
			step:    time.Millisecond,
			wantErr: ErrOutOfSequence,
		},
		{
			name:    "continuation without first frame",
			frames:  []Frame{cf1, cf2},
			step:    time.Millisecond,
			wantErr: ErrUnexpectedFrame,
		},
		{
			name:    "continuation too late",
			frames:  []Frame{ff, cf1, cf2},
			step:    2 * time.Second,
			wantErr: ErrAssemblyTimeout,
		},
		{
			name:   "stream truncated",
			frames: []Frame{ff, cf1},
			step:   time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler(time.Second)
			now := t0
			for i, f := range tt.frames {
				payload, done, err := a.Feed(f, now)
				if done || payload != nil {
					t.Fatalf("frame %d produced payload % X", i, payload)
				}
				if err != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("frame %d error = %v, want %v", i, err, tt.wantErr)
					}
					if a.Pending() != 0 {
						t.Errorf("assembly kept after %v", err)
					}
					return
				}
				now = now.Add(tt.step)
			}
			if tt.wantErr != nil {
				t.Fatalf("no error, want %v", tt.wantErr)
			}
		})
	}
}

func TestAssemblerSequenceWraps(t *testing.T) {
	a := NewAssembler(time.Second)
	// 6 bytes in the first frame plus 16 continuations of 7 bytes.
	total := 6 + 16*7
	now := t0

	if _, _, err := a.Feed(Frame{ID: 0x7EA, Data: []byte{0x10, byte(total), 0x61, 0xC3, 0, 0, 0, 0}}, now); err != nil {
		t.Fatalf("first frame: %v", err)
	}

	seq := byte(1)
	for i := 0; i < 16; i++ {
		data := append([]byte{0x20 | seq}, make([]byte, 7)...)
		payload, done, err := a.Feed(Frame{ID: 0x7EA, Data: data}, now)
		if err != nil {
			t.Fatalf("continuation %d (seq %d): %v", i, seq, err)
		}
		if done != (i == 15) {
			t.Fatalf("continuation %d done = %v", i, done)
		}
		if done && len(payload) != total {
			t.Errorf("payload length = %d, want %d", len(payload), total)
		}
		seq = (seq + 1) & 0x0F
	}
}

func TestAssemblerKeepsResponsesApart(t *testing.T) {
	a := NewAssembler(time.Second)
	engine := Frame{ID: 0x7E8, Data: []byte{0x10, 0x09, 0x41, 0x05, 0x5A, 0, 0, 0}}

	if _, _, err := a.Feed(batteryResponse[0], t0); err != nil {
		t.Fatal(err)
	}
	if _, _, err := a.Feed(engine, t0); err != nil {
		t.Fatal(err)
	}
	if a.Pending() != 2 {
		t.Fatalf("Pending() = %d, want 2", a.Pending())
	}

	payload, done, err := a.Feed(Frame{ID: 0x7E8, Data: []byte{0x21, 0x01, 0x02, 0x03, 0, 0, 0, 0}}, t0)
	if err != nil || !done {
		t.Fatalf("engine continuation: done %v err %v", done, err)
	}
	if len(payload) != 9 {
		t.Errorf("engine payload length = %d, want 9", len(payload))
	}
	if a.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", a.Pending())
	}
}

func TestAssemblerExpire(t *testing.T) {
	a := NewAssembler(time.Second)
	if _, _, err := a.Feed(batteryResponse[0], t0); err != nil {
		t.Fatal(err)
	}

	if n := a.Expire(t0.Add(500 * time.Millisecond)); n != 0 {
		t.Errorf("Expire() before deadline = %d, want 0", n)
	}
	if n := a.Expire(t0.Add(2 * time.Second)); n != 1 {
		t.Errorf("Expire() after deadline = %d, want 1", n)
	}
	if a.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", a.Pending())
	}
}

func TestAssemblerInvalidFrames(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single frame zero length", []byte{0x00, 0x41}},
		{"single frame longer than data", []byte{0x05, 0x41, 0x46}},
		{"first frame too short for multi-frame", []byte{0x10, 0x05, 1, 2, 3, 4, 5, 6}},
		{"first frame truncated", []byte{0x10, 0x20, 1, 2}},
		{"reserved pci", []byte{0x40, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler(time.Second)
			payload, done, err := a.Feed(Frame{ID: 0x7EA, Data: tt.data}, t0)
			if !errors.Is(err, ErrInvalidFrame) {
				t.Errorf("Feed() error = %v, want ErrInvalidFrame", err)
			}
			if done || payload != nil {
				t.Errorf("Feed() returned payload % X", payload)
			}
		})
	}
}
