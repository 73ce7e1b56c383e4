package api

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// streamer turns store changes into paced WebSocket events. The store
// callback only records which slices changed; run broadcasts the latest
// value of each at most once per interval.
type streamer struct {
	store    Store
	hub      *Hub
	snapshot func() state.AppState
	interval time.Duration

	dirty  atomic.Uint32
	events atomic.Uint64
}

func newStreamer(store Store, hub *Hub, snapshot func() state.AppState, interval time.Duration) *streamer {
	return &streamer{store: store, hub: hub, snapshot: snapshot, interval: interval}
}

func (s *streamer) subscribe() func() {
	return s.store.Subscribe(state.SliceAll, func(c state.Change) {
		for {
			old := s.dirty.Load()
			if s.dirty.CompareAndSwap(old, old|uint32(c.Slices)) {
				return
			}
		}
	})
}

func (s *streamer) run(ctx context.Context) {
	unsubscribe := s.subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush broadcasts every slice changed since the last call.
func (s *streamer) flush() int {
	dirty := state.Slices(s.dirty.Swap(0))
	if dirty == state.SliceNone {
		return 0
	}

	snapshot := s.snapshot()
	sent := 0
	for _, slice := range dirty.Each() {
		value, err := snapshot.Slice(slice)
		if err != nil {
			continue
		}
		s.hub.Broadcast(ChannelStatePrefix+slice.String(), SlicePayload{
			Slice:   slice.String(),
			Version: snapshot.Version,
			Value:   value,
		})
		sent++
	}
	s.events.Add(uint64(sent)) //nolint:gosec // sent is non-negative
	return sent
}
