package telemetry

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/mqtt"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// MessagePublisher is the part of the MQTT client the publisher uses.
type MessagePublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// PublisherStats holds publisher counters.
type PublisherStats struct {
	Published uint64 `json:"published"`
	Failures  uint64 `json:"failures"`
}

// Publisher mirrors state slices to retained MQTT topics.
//
// Thread Safety:
//   - Flush and PublishStats must be called from one goroutine (the app loop).
//   - MarkAll is safe from any goroutine, e.g. an MQTT reconnect callback.
type Publisher struct {
	store  Store
	client MessagePublisher
	topics mqtt.Topics
	logger Logger

	dirty     atomic.Uint32
	published atomic.Uint64
	failures  atomic.Uint64

	mu          sync.Mutex
	unsubscribe func()
}

// NewPublisher creates a publisher. Every slice starts dirty so the first
// Flush publishes a full snapshot.
func NewPublisher(store Store, client MessagePublisher, topics mqtt.Topics, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	p := &Publisher{store: store, client: client, topics: topics, logger: logger}
	p.MarkAll()
	return p
}

// Start subscribes to every slice.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		return
	}
	p.unsubscribe = p.store.Subscribe(state.SliceAll, func(c state.Change) {
		p.mark(c.Slices)
	})
}

// Stop unsubscribes. Pending dirty slices are kept.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

// MarkAll schedules every slice for the next Flush. Call it after the
// broker connection is re-established.
func (p *Publisher) MarkAll() {
	p.mark(state.SliceAll)
}

func (p *Publisher) mark(s state.Slices) {
	for {
		old := p.dirty.Load()
		if p.dirty.CompareAndSwap(old, old|uint32(s)) {
			return
		}
	}
}

// Flush publishes every dirty slice from the current snapshot. Slices that
// fail to publish stay dirty for the next call.
//
// Returns:
//   - int: Number of slices published
func (p *Publisher) Flush() int {
	dirty := state.Slices(p.dirty.Swap(0))
	if dirty == state.SliceNone {
		return 0
	}

	snapshot := p.store.State()
	sent := 0
	var failed state.Slices
	for _, slice := range dirty.Each() {
		if err := p.publishSlice(snapshot, slice); err != nil {
			failed |= slice
			p.failures.Add(1)
			p.logger.Debug("state publish failed", "slice", slice.String(), "error", err)
			continue
		}
		sent++
	}
	if failed != state.SliceNone {
		p.mark(failed)
	}
	p.published.Add(uint64(sent)) //nolint:gosec // sent is non-negative
	return sent
}

func (p *Publisher) publishSlice(snapshot state.AppState, slice state.Slices) error {
	value, err := snapshot.Slice(slice)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return p.client.PublishRetained(p.topics.State(slice.String()), payload)
}

// PublishStats publishes v as JSON on the non-retained stats topic.
func (p *Publisher) PublishStats(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.client.Publish(p.topics.Stats(), payload, 0, false)
}

// Stats returns a snapshot of the publisher counters.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		Published: p.published.Load(),
		Failures:  p.failures.Load(),
	}
}
