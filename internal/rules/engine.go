package rules

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// DefaultMaxCascadeDepth bounds nested rule-triggered changes.
const DefaultMaxCascadeDepth = 8

// Logger defines the logging interface used by the Engine.
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

// Store is the part of state.Store the engine needs.
type Store interface {
	Dispatch(a state.Action) state.Slices
	Subscribe(slices state.Slices, fn func(state.Change)) func()
}

// Stats counts engine activity.
type Stats struct {
	Evaluations   uint64 `json:"evaluations"`
	Actions       uint64 `json:"actions"`
	Errors        uint64 `json:"errors"`
	CascadeFaults uint64 `json:"cascade_faults"`
}

// Info describes a registered rule.
type Info struct {
	Name    string   `json:"name"`
	Watches []string `json:"watches"`
}

// Engine evaluates registered rules on every Store change.
//
// Thread Safety: Register, Stats and Rules are safe for concurrent use.
// Evaluation runs on the goroutine that dispatched the change.
type Engine struct {
	store    Store
	maxDepth int
	logger   Logger

	mu          sync.Mutex
	rules       []Rule
	names       map[string]struct{}
	stats       Stats
	onFault     func(error)
	unsubscribe func()
}

// NewEngine creates a rules engine for store.
//
// Parameters:
//   - store: Store to subscribe to and dispatch into
//   - maxDepth: Cascade bound; values below 1 select DefaultMaxCascadeDepth
//   - logger: Logger instance (nil for none)
func NewEngine(store Store, maxDepth int, logger Logger) *Engine {
	if maxDepth < 1 {
		maxDepth = DefaultMaxCascadeDepth
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Engine{
		store:    store,
		maxDepth: maxDepth,
		logger:   logger,
		names:    make(map[string]struct{}),
	}
}

// Register adds a rule. Rules are evaluated in registration order.
//
// Returns:
//   - error: ErrInvalidRule or ErrDuplicateRule
func (e *Engine) Register(r Rule) error {
	if r == nil || r.Name() == "" {
		return ErrInvalidRule
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.names[r.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRule, r.Name())
	}
	e.names[r.Name()] = struct{}{}
	e.rules = append(e.rules, r)
	e.logger.Debug("rule registered", "rule", r.Name(), "watches", r.Watches().String())
	return nil
}

// SetFaultHandler registers fn to receive ErrCascadeLimit and ErrRulePanic
// reports.
func (e *Engine) SetFaultHandler(fn func(error)) {
	e.mu.Lock()
	e.onFault = fn
	e.mu.Unlock()
}

// Start subscribes the engine to every Store change. Calling Start twice
// has no effect.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsubscribe != nil {
		return
	}
	e.unsubscribe = e.store.Subscribe(state.SliceAll, e.handle)
	e.logger.Info("rules engine started", "rules", len(e.rules), "max_cascade_depth", e.maxDepth)
}

// Stop removes the Store subscription.
func (e *Engine) Stop() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Stats returns a copy of the counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

// Rules lists the registered rules in evaluation order.
func (e *Engine) Rules() []Info {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Info, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, Info{Name: r.Name(), Watches: r.Watches().Names()})
	}
	return out
}

// handle is the Store subscription callback.
func (e *Engine) handle(c state.Change) {
	e.mu.Lock()
	var triggered []Rule
	for _, r := range e.rules {
		if r.Watches().Intersects(c.Slices) {
			triggered = append(triggered, r)
		}
	}
	onFault := e.onFault
	if len(triggered) > 0 && c.Depth >= e.maxDepth {
		e.stats.CascadeFaults++
	}
	e.mu.Unlock()

	if len(triggered) == 0 {
		return
	}

	if c.Depth >= e.maxDepth {
		names := make([]string, len(triggered))
		for i, r := range triggered {
			names[i] = r.Name()
		}
		err := fmt.Errorf("%w: depth %d after %s, rules %s",
			ErrCascadeLimit, c.Depth, c.Action.Kind(), strings.Join(names, ","))
		e.logger.Error("rule cascade stopped",
			"depth", c.Depth,
			"action", c.Action.Kind(),
			"slices", c.Slices.String(),
			"rules", strings.Join(names, ","),
		)
		if onFault != nil {
			onFault(err)
		}
		return
	}

	for _, r := range triggered {
		actions, err := e.evaluate(r, c.Prev, c.Next)
		if err != nil {
			e.logger.Error("rule evaluation failed", "rule", r.Name(), "error", err)
			if onFault != nil {
				onFault(err)
			}
			continue
		}
		for _, a := range actions {
			if a == nil {
				continue
			}
			e.logger.Debug("rule dispatch", "rule", r.Name(), "action", a.Kind(), "depth", c.Depth+1)
			e.store.Dispatch(a)
		}
	}
}

// evaluate runs one rule, converting a panic into ErrRulePanic.
func (e *Engine) evaluate(r Rule, prev, next state.AppState) (actions []state.Action, err error) {
	defer func() {
		if p := recover(); p != nil {
			actions = nil
			err = fmt.Errorf("%w: %s: %v", ErrRulePanic, r.Name(), p)
		}

		e.mu.Lock()
		e.stats.Evaluations++
		if err != nil {
			e.stats.Errors++
		} else {
			e.stats.Actions += uint64(len(actions))
		}
		e.mu.Unlock()
	}()

	return r.Evaluate(prev, next), nil
}
