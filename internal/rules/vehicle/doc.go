// Package vehicle holds the concrete Prius derived-state rules.
//
// Every rule is built with rules.Derived, so it only runs when one of the
// fields it reads changed, and it only emits an action when the derived
// value differs from the current one.
package vehicle
