package rules

import "github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"

// Rule computes derived state from two snapshots.
type Rule interface {
	// Name identifies the rule in logs and the API. Must be unique.
	Name() string

	// Watches returns the slices whose changes trigger evaluation.
	Watches() state.Slices

	// Evaluate returns the actions needed to bring derived state in line
	// with next. It must not have side effects.
	Evaluate(prev, next state.AppState) []state.Action
}

// FuncRule adapts a function to the Rule interface.
type FuncRule struct {
	RuleName    string
	WatchSlices state.Slices
	Fn          func(prev, next state.AppState) []state.Action
}

// Name implements Rule.
func (r FuncRule) Name() string { return r.RuleName }

// Watches implements Rule.
func (r FuncRule) Watches() state.Slices { return r.WatchSlices }

// Evaluate implements Rule.
func (r FuncRule) Evaluate(prev, next state.AppState) []state.Action {
	if r.Fn == nil {
		return nil
	}
	return r.Fn(prev, next)
}

// Derived builds a rule that only runs compute when the projection of its
// inputs differs between prev and next, which makes it idempotent.
//
// Parameters:
//   - name: Rule name
//   - watches: Slices that trigger evaluation
//   - inputs: Projection of the fields the rule reads
//   - compute: Returns actions for next; should return none when derived
//     state already matches
func Derived[T comparable](name string, watches state.Slices, inputs func(state.AppState) T, compute func(next state.AppState) []state.Action) Rule {
	return FuncRule{
		RuleName:    name,
		WatchSlices: watches,
		Fn: func(prev, next state.AppState) []state.Action {
			if inputs(prev) == inputs(next) {
				return nil
			}
			return compute(next)
		},
	}
}
