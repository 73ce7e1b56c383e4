// Package ingress turns gateway messages into state actions.
//
// The controller drains the input port once per tick and routes each
// message by channel:
//
//	InputPort.Poll ──▶ channel 0   system     ──▶ connection actions
//	                   channel 1   Bus-B CAN  ──▶ signals / ISO-TP ──▶ actions
//	                   channel 2   Bus-A AVC  ──▶ events ──▶ actions
//	                   channel 100+ satellites ──▶ SatelliteHandler
//	                                                    │
//	                                                    ▼
//	                                             Store.Dispatch
//
// Every action produced here carries OriginHardware, so the egress
// controller never echoes bus traffic back onto the bus.
//
// A message that fails to decode is logged, counted and dropped. Signals
// flagged out of spec are counted and never dispatched. Plausibility
// filters reject readings the cars are known to emit during start-up
// (for example a zero state of charge before the battery ECU is awake).
//
// # Key Types
//
//   - Controller: drains the input port and dispatches actions
//   - SatelliteHandler: decodes one satellite channel
//   - LightSensor, LPGController: built-in satellite handlers
package ingress
