package state

import (
	"fmt"
	"sync"
)

// Logger defines the logging interface used by the Store.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Change is delivered to subscribers after an action changed the state.
type Change struct {
	Action Action
	Prev   AppState
	Next   AppState
	Slices Slices

	// Depth is 0 for an action dispatched from outside any notification and
	// parent depth + 1 for an action dispatched while a change was being
	// delivered.
	Depth int
}

// Stats counts Store activity.
type Stats struct {
	Dispatched uint64 `json:"dispatched"`
	Applied    uint64 `json:"applied"`
	NoOps      uint64 `json:"no_ops"`
	Queued     uint64 `json:"queued"`
	MaxQueue   int    `json:"max_queue"`
	Clamps     uint64 `json:"clamps"`
	Panics     uint64 `json:"subscriber_panics"`
}

type subscription struct {
	id     uint64
	slices Slices
	fn     func(Change)
}

type queued struct {
	action Action
	depth  int
}

// Store holds the current AppState and serialises every transition.
//
// Thread Safety: all methods are safe for concurrent use. Subscribers are
// called without the lock held and may call Dispatch, State or Subscribe.
type Store struct {
	mu          sync.Mutex
	state       AppState
	subs        []subscription
	nextSubID   uint64
	queue       []queued
	dispatching bool
	depth       int
	stats       Stats
	onFault     func(Fault)
	logger      Logger
}

// NewStore creates a store holding initial.
//
// Parameters:
//   - initial: Start-up state, usually Default()
//   - logger: Logger instance (nil for none)
func NewStore(initial AppState, logger Logger) *Store {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Store{
		state:  initial,
		logger: logger,
	}
}

// SetFaultHandler registers fn to receive every reducer Fault. fn runs on
// the dispatching goroutine, outside the lock.
func (s *Store) SetFaultHandler(fn func(Fault)) {
	s.mu.Lock()
	s.onFault = fn
	s.mu.Unlock()
}

// State returns the current snapshot.
func (s *Store) State() AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the dispatch counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Subscribe registers fn for changes touching any slice in slices.
// SliceAll receives every change.
//
// Returns:
//   - func(): Removes the subscription. Safe to call more than once.
func (s *Store) Subscribe(slices Slices, fn func(Change)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSubID++
	id := s.nextSubID
	s.subs = append(s.subs, subscription{id: id, slices: slices, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Dispatch applies an action and notifies subscribers.
//
// When no dispatch is in progress the action is applied immediately, every
// matching subscriber is notified, and any actions queued meanwhile are
// applied in FIFO order before Dispatch returns. When a dispatch is already
// in progress the action is queued and Dispatch returns SliceNone.
//
// Returns:
//   - Slices: Slices changed by this action (SliceNone when queued or no-op)
func (s *Store) Dispatch(a Action) Slices {
	s.mu.Lock()
	s.stats.Dispatched++
	if s.dispatching {
		s.queue = append(s.queue, queued{action: a, depth: s.depth + 1})
		s.stats.Queued++
		if len(s.queue) > s.stats.MaxQueue {
			s.stats.MaxQueue = len(s.queue)
		}
		s.mu.Unlock()
		return SliceNone
	}
	s.dispatching = true
	s.mu.Unlock()

	changed := s.apply(a, 0)

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.dispatching = false
			s.depth = 0
			s.mu.Unlock()
			return changed
		}
		next := s.queue[0]
		s.queue[0] = queued{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.apply(next.action, next.depth)
	}
}

// apply runs the reducer and notifies subscribers. Only the goroutine that
// owns the dispatching flag calls it.
func (s *Store) apply(a Action, depth int) Slices {
	s.mu.Lock()
	prev := s.state
	next, changed, faults := Reduce(prev, a)
	if len(faults) > 0 {
		next.Diagnostics.Clamps += uint64(len(faults))
		changed |= SliceDiagnostics
		s.stats.Clamps += uint64(len(faults))
	}
	if changed == SliceNone {
		s.stats.NoOps++
		s.mu.Unlock()
		return SliceNone
	}

	next.Version = prev.Version + 1
	s.state = next
	s.depth = depth
	s.stats.Applied++
	onFault := s.onFault

	var targets []func(Change)
	for _, sub := range s.subs {
		if sub.slices.Intersects(changed) {
			targets = append(targets, sub.fn)
		}
	}
	s.mu.Unlock()

	for _, f := range faults {
		s.logger.Warn("state value clamped", "fault", f.String())
		if onFault != nil {
			onFault(f)
		}
	}

	change := Change{Action: a, Prev: prev, Next: next, Slices: changed, Depth: depth}
	for _, fn := range targets {
		s.notify(fn, change)
	}
	return changed
}

// notify calls one subscriber, recovering a panic so one faulty
// subscriber cannot stop the others.
func (s *Store) notify(fn func(Change), c Change) {
	defer func() {
		if r := recover(); r != nil {
			s.mu.Lock()
			s.stats.Panics++
			s.mu.Unlock()
			s.logger.Error("state subscriber panicked",
				"action", c.Action.Kind(),
				"panic", fmt.Sprint(r),
			)
		}
	}()
	fn(c)
}
