package settings

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// Logger defines the logging interface used by the persister.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the part of the state store the persister uses.
type Store interface {
	Subscribe(slices state.Slices, fn func(state.Change)) func()
	State() state.AppState
}

// watched are the slices holding preferences.
const watched = state.SliceAudio | state.SliceClimate | state.SliceLights |
	state.SliceDisplay | state.SliceSatellites

// PersisterStats holds persister counters.
type PersisterStats struct {
	Saves    uint64 `json:"saves"`
	Failures uint64 `json:"failures"`
}

// Persister saves preferences after user changes.
//
// The store callback only sets a flag; the database write happens in
// Flush, off the app loop.
type Persister struct {
	store  Store
	repo   Repository
	logger Logger

	dirty    atomic.Bool
	saves    atomic.Uint64
	failures atomic.Uint64

	mu          sync.Mutex
	last        Settings
	unsubscribe func()
}

// NewPersister creates a persister. last is the currently stored value;
// Flush skips the write when nothing persisted changed.
func NewPersister(store Store, repo Repository, last Settings, logger Logger) *Persister {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Persister{store: store, repo: repo, last: last, logger: logger}
}

// Start subscribes to the store.
func (p *Persister) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		return
	}
	p.unsubscribe = p.store.Subscribe(watched, func(c state.Change) {
		if c.Action.Source() == state.OriginUser {
			p.dirty.Store(true)
		}
	})
}

// Stop unsubscribes from the store.
func (p *Persister) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
}

// Dirty reports whether a user change is waiting to be saved.
func (p *Persister) Dirty() bool {
	return p.dirty.Load()
}

// Flush saves the current preferences if a user change marked them dirty.
// A failed save leaves the flag set so the next Flush retries.
func (p *Persister) Flush(ctx context.Context) error {
	if !p.dirty.Swap(false) {
		return nil
	}

	s := FromState(p.store.State())

	p.mu.Lock()
	unchanged := s == p.last
	p.mu.Unlock()
	if unchanged {
		return nil
	}

	if err := p.repo.Save(ctx, s); err != nil {
		p.dirty.Store(true)
		p.failures.Add(1)
		return err
	}

	p.mu.Lock()
	p.last = s
	p.mu.Unlock()
	p.saves.Add(1)
	p.logger.Debug("settings saved", "volume", s.Audio.Volume, "drl_mode", string(s.DRLMode))
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more.
func (p *Persister) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			//nolint:contextcheck // final save must outlive the cancelled context
			if err := p.Flush(context.Background()); err != nil {
				p.logger.Error("final settings save failed", "error", err)
			}
			return nil
		case <-ticker.C:
			if err := p.Flush(ctx); err != nil {
				p.logger.Warn("settings save failed", "error", err)
			}
		}
	}
}

// Stats returns a snapshot of the counters.
func (p *Persister) Stats() PersisterStats {
	return PersisterStats{Saves: p.saves.Load(), Failures: p.failures.Load()}
}
