// Package rules evaluates derived-state rules against Store changes.
//
// A Rule watches a set of state slices. Whenever a change touches one of
// them, the Engine passes the previous and next snapshots to the rule and
// dispatches the actions it returns back into the Store:
//
//	Store.Dispatch ──▶ Change ──▶ Engine ──▶ Rule.Evaluate(prev, next)
//	      ▲                                          │
//	      └──────────────── []state.Action ──────────┘
//
// Actions dispatched from a rule are queued by the Store and carry the
// parent change's depth plus one. When a change reaches MaxCascadeDepth and
// would still trigger a rule, the Engine stops the cascade, logs the rule
// names and reports ErrCascadeLimit: a rule cycle is a defect, not a
// steady state.
//
// Rules must be idempotent: Evaluate(s, s) returns no actions. Derived
// builds rules with that property from an input projection.
//
// # Key Types
//
//   - Rule: interface implemented by concrete rules
//   - FuncRule: adapter for plain functions
//   - Engine: registry plus Store subscription
package rules
