package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/command"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/mqtt"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
)

// fakeMQTT captures publishes and subscriptions.
type fakeMQTT struct {
	mu       sync.Mutex
	retained map[string][]byte
	plain    map[string][]byte
	handlers map[string]mqtt.MessageHandler
	fail     bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{
		retained: make(map[string][]byte),
		plain:    make(map[string][]byte),
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, _ byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return mqtt.ErrNotConnected
	}
	if retained {
		f.retained[topic] = payload
	} else {
		f.plain[topic] = payload
	}
	return nil
}

func (f *fakeMQTT) PublishRetained(topic string, payload []byte) error {
	return f.Publish(topic, payload, 1, true)
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeMQTT) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retained = make(map[string][]byte)
}

func (f *fakeMQTT) topicCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retained)
}

func newTestStore(t *testing.T) *state.Store {
	t.Helper()
	return state.NewStore(state.Default(), nil)
}

func TestPublisherInitialSnapshot(t *testing.T) {
	store := newTestStore(t)
	client := newFakeMQTT()
	p := NewPublisher(store, client, mqtt.NewTopics("", "prius"), nil)

	if n := p.Flush(); n != state.SliceAll.Len() {
		t.Fatalf("first Flush() = %d, want %d", n, state.SliceAll.Len())
	}

	var audio state.AudioState
	if err := json.Unmarshal(client.retained["virtualtwin/prius/state/audio"], &audio); err != nil {
		t.Fatalf("audio payload: %v", err)
	}
	if audio.Volume != 25 {
		t.Errorf("audio.volume = %d, want 25", audio.Volume)
	}

	if n := p.Flush(); n != 0 {
		t.Errorf("idle Flush() = %d, want 0", n)
	}
}

func TestPublisherOnlyChangedSlices(t *testing.T) {
	store := newTestStore(t)
	client := newFakeMQTT()
	p := NewPublisher(store, client, mqtt.NewTopics("", "prius"), nil)
	p.Start()
	defer p.Stop()
	p.Flush()
	client.reset()

	store.Dispatch(state.SetVolume{Volume: 40, Origin: state.OriginUser})
	store.Dispatch(state.SetVolume{Volume: 41, Origin: state.OriginUser})

	if n := p.Flush(); n != 1 {
		t.Fatalf("Flush() = %d, want 1", n)
	}
	if client.topicCount() != 1 {
		t.Errorf("published %d topics, want 1", client.topicCount())
	}
	var audio state.AudioState
	_ = json.Unmarshal(client.retained["virtualtwin/prius/state/audio"], &audio)
	if audio.Volume != 41 {
		t.Errorf("published volume = %d, want latest 41", audio.Volume)
	}
}

func TestPublisherRetriesFailedSlices(t *testing.T) {
	store := newTestStore(t)
	client := newFakeMQTT()
	p := NewPublisher(store, client, mqtt.NewTopics("", "prius"), nil)

	client.fail = true
	if n := p.Flush(); n != 0 {
		t.Fatalf("Flush() while offline = %d", n)
	}
	if p.Stats().Failures != uint64(state.SliceAll.Len()) {
		t.Errorf("failures = %d", p.Stats().Failures)
	}

	client.fail = false
	if n := p.Flush(); n != state.SliceAll.Len() {
		t.Errorf("Flush() after reconnect = %d, want all", n)
	}
}

func TestPublisherMarkAllAndStats(t *testing.T) {
	store := newTestStore(t)
	client := newFakeMQTT()
	p := NewPublisher(store, client, mqtt.NewTopics("", "prius"), nil)
	p.Flush()

	p.MarkAll()
	if n := p.Flush(); n != state.SliceAll.Len() {
		t.Errorf("Flush() after MarkAll = %d", n)
	}

	if err := p.PublishStats(map[string]int{"ticks": 3}); err != nil {
		t.Fatalf("PublishStats() error = %v", err)
	}
	if string(client.plain["virtualtwin/prius/stats"]) != `{"ticks":3}` {
		t.Errorf("stats payload = %s", client.plain["virtualtwin/prius/stats"])
	}
}

// fakeQueue records enqueued actions.
type fakeQueue struct {
	actions []state.Action
	full    bool
}

func (q *fakeQueue) Enqueue(a state.Action) error {
	if q.full {
		return twin.ErrQueueFull
	}
	q.actions = append(q.actions, a)
	return nil
}

func TestCommandSubscriber(t *testing.T) {
	client := newFakeMQTT()
	queue := &fakeQueue{}
	topics := mqtt.NewTopics("", "prius")
	s := NewCommandSubscriber(client, queue, topics, 1, nil)

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	handler := client.handlers[topics.AllCommands()]
	if handler == nil {
		t.Fatal("no handler registered for command topics")
	}

	tests := []struct {
		topic   string
		payload string
		wantErr error
	}{
		{topics.Command("set_volume"), `{"value":30}`, nil},
		{topics.Command("set_drl_mode"), `{"mode":"on"}`, nil},
		{topics.Command("self_destruct"), `{}`, command.ErrUnknownCommand},
		{topics.Command("set_volume"), `{"value":"loud"}`, command.ErrInvalidParameter},
		{"virtualtwin/other/command/set_volume", `{"value":1}`, command.ErrUnknownCommand},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.topic, tt.payload), func(t *testing.T) {
			err := handler(tt.topic, []byte(tt.payload))
			if tt.wantErr == nil && err != nil {
				t.Fatalf("handler error = %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("handler error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	want := []state.Action{
		state.SetVolume{Volume: 30, Origin: state.OriginUser},
		state.SetDRLMode{Mode: state.DRLOn, Origin: state.OriginUser},
	}
	if len(queue.actions) != len(want) {
		t.Fatalf("queued %d actions, want %d", len(queue.actions), len(want))
	}
	for i := range want {
		if queue.actions[i] != want[i] {
			t.Errorf("action[%d] = %#v, want %#v", i, queue.actions[i], want[i])
		}
	}

	stats := s.Stats()
	if stats.Accepted != 2 || stats.Rejected != 3 {
		t.Errorf("stats = %+v", stats)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if len(client.handlers) != 0 {
		t.Error("command topic still subscribed after Stop")
	}
}

func TestCommandSubscriberQueueFull(t *testing.T) {
	client := newFakeMQTT()
	queue := &fakeQueue{full: true}
	topics := mqtt.NewTopics("", "prius")
	s := NewCommandSubscriber(client, queue, topics, 1, nil)

	err := s.handle(topics.Command("set_fan_speed"), []byte(`{"value":2}`))
	if !errors.Is(err, twin.ErrQueueFull) {
		t.Fatalf("handle() error = %v, want ErrQueueFull", err)
	}
	if s.Stats().Dropped != 1 {
		t.Errorf("dropped = %d, want 1", s.Stats().Dropped)
	}
}

type writtenPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type fakeWriter struct {
	points []writtenPoint
}

func (w *fakeWriter) WritePointWithTime(m string, tags map[string]string, fields map[string]any, ts time.Time) {
	w.points = append(w.points, writtenPoint{m, tags, fields, ts})
}

func TestInfluxRecorder(t *testing.T) {
	store := newTestStore(t)
	writer := &fakeWriter{}
	r := NewInfluxRecorder(store, writer, time.Second)
	r.Start()
	defer r.Stop()

	t0 := time.Unix(1000, 0)
	if n := r.Record(t0); n != 0 {
		t.Fatalf("Record() with no changes = %d", n)
	}

	store.Dispatch(state.SetSOC{Fraction: 0.7, Origin: state.OriginHardware})
	if n := r.Record(t0); n != 1 {
		t.Fatalf("Record() = %d, want 1", n)
	}
	p := writer.points[0]
	if p.measurement != "energy" || p.fields["soc"] != 0.7 || !p.ts.Equal(t0) {
		t.Errorf("point = %+v", p)
	}

	store.Dispatch(state.SetGear{Gear: state.GearDrive, Origin: state.OriginHardware})
	if n := r.Record(t0.Add(500 * time.Millisecond)); n != 0 {
		t.Errorf("Record() inside interval = %d, want 0", n)
	}
	if n := r.Record(t0.Add(time.Second)); n != 1 {
		t.Fatalf("Record() after interval = %d, want 1", n)
	}
	p = writer.points[1]
	if p.measurement != "vehicle" || p.tags["gear"] != "D" {
		t.Errorf("point = %+v", p)
	}

	store.Dispatch(state.SetVolume{Volume: 10, Origin: state.OriginUser})
	if n := r.Record(t0.Add(3 * time.Second)); n != 0 {
		t.Errorf("Record() after audio change = %d, want 0", n)
	}
	if r.Points() != 2 {
		t.Errorf("Points() = %d, want 2", r.Points())
	}
}
