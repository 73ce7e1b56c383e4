package rules

import "errors"

// Domain errors for the rules package.
var (
	// ErrCascadeLimit is reported when rule-triggered changes nest deeper
	// than the configured bound.
	ErrCascadeLimit = errors.New("rules: cascade depth limit reached")

	// ErrInvalidRule is returned when registering a nil or unnamed rule.
	ErrInvalidRule = errors.New("rules: invalid rule")

	// ErrDuplicateRule is returned when a rule name is already registered.
	ErrDuplicateRule = errors.New("rules: duplicate rule name")

	// ErrRulePanic is reported when a rule panics during evaluation.
	ErrRulePanic = errors.New("rules: rule panicked")
)
