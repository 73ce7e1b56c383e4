// Package api implements the HTTP API and WebSocket stream for the
// virtual twin.
//
// This package provides:
//   - Read endpoints for the current state, single slices, rules and counters
//   - POST /api/v1/actions, which queues user commands for the next tick
//   - A WebSocket hub that streams changed state slices to subscribers
//   - Health and Prometheus endpoints
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Architecture
//
//	HTTP client ──POST /actions──► command.Decode ──► Twin.Enqueue
//	                                                    │ (next tick)
//	                                                    ▼
//	WebSocket client ◄── Hub.Broadcast ◄── streamer ◄── Store.Subscribe
//
// The API never dispatches into the store. Writes go through the twin's
// bounded remote queue so the app loop stays the only writer.
//
// # WebSocket protocol
//
// Clients send {"type":"subscribe","payload":{"channels":["state.energy"]}}
// and receive the current value of each channel at once, then one
// {"type":"event","event_type":"state.energy",...} per change. The channel
// "state.all" selects every slice.
package api
