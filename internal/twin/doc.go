// Package twin assembles the engine and drives it from the app loop.
//
// One Update call is one tick:
//
//	remote actions ──┐
//	                 ▼
//	InputPort ──▶ Ingress ──▶ Store ──▶ Rules ──▶ Store ...
//	                            │
//	                            ├──▶ Egress ──▶ OutputPort
//	                            └──▶ other subscribers (API, telemetry)
//	DiagnosticPoller ──▶ OutputPort
//	transport status, counters ──▶ Store (Connection, Diagnostics)
//
// Network goroutines never touch the store directly: they call Enqueue,
// and the next Update dispatches the queued actions on the app goroutine.
//
// The ports are chosen by mode. Production opens the serial gateway link
// for both directions; development replays a capture (or idles on a mock)
// and logs outgoing commands; test uses in-memory mocks.
package twin
