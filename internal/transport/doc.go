// Package transport moves gateway messages between the car and the engine.
//
// The gateway speaks newline-delimited JSON. Each inbound line is an
// envelope:
//
//	{"id": 2, "ts": 1714564800123, "seq": 17, "d": {...}}
//
// where id selects the channel (0 system, 1 CAN, 2 AVC-LAN, 100+
// satellites), ts is the capture time in milliseconds and d is the payload
// understood by the matching codec. Outbound lines carry a command name:
//
//	{"id": 110, "cmd": "E", "d": {...}}
//
// InputPort and OutputPort decouple the engine from the physical link.
// Implementations:
//
//   - Link: serial connection to the gateway with a reconnect state machine
//   - Replay: plays back a recorded NDJSON capture
//   - MockInput, MockOutput: in-memory ports for tests
//   - MultiOutput: fans one command out to several outputs
//   - UDPOutput: mirrors satellite commands to local UDP listeners
//   - LogOutput: logs commands instead of sending them
//
// # Link state machine
//
//	Disconnected ──▶ Connecting ──▶ Connected
//	     ▲               │              │
//	     └── open fails ─┘              │ read/write error
//	     ◀──────────────────────────────┘ (outbound queue drained)
//
// Stop moves any state to Stopped, which is terminal. Inbound and outbound
// queues are bounded; a full queue drops the message and counts it.
package transport
