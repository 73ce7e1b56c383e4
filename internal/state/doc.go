// Package state owns the vehicle's application state.
//
// AppState is an immutable value made of independent slices (Audio,
// Climate, Vehicle, ...). Every transition is produced by applying exactly
// one Action to the current AppState through a pure reducer. The Store
// holds the current value, serialises dispatch and notifies subscribers
// with the previous and next snapshots plus the set of changed slices.
//
// Actions form a closed set: the Action interface has an unexported marker
// method, so only the concrete types declared here satisfy it. Each action
// carries an Origin (hardware, user, internal or rule), which downstream
// components use to decide whether a change must be sent back to the car.
//
// Values outside a slice's documented range are clamped by the reducer and
// reported as Faults; the Store counts them in the Diagnostics slice.
//
// # Thread Safety
//
// Store methods are safe for concurrent use. A dispatch issued while
// another is in progress (including from a subscriber callback) is queued
// and applied after the current notification completes, so notification
// for one action always happens-before the next action is applied.
package state
