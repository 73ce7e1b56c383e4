// Package egress turns state changes into hardware commands.
//
// The controller subscribes to every slice of the store. For each change
// it checks who caused it:
//
//	Change ──▶ origin user or rule? ──no──▶ skipped
//	              │ yes
//	              ▼
//	     diff Prev/Next per slice
//	              │
//	   ┌──────────┼─────────────┬──────────────┐
//	   ▼          ▼             ▼              ▼
//	 Audio     Climate        Lights       Satellites
//	 avclan    avclan         DRL (106)    VFD E/S/C (110)
//
// Hardware-origin changes never produce commands: they describe what the
// bus already did. Internal changes (connection bookkeeping, settings load)
// are also silent.
//
// Send failures are counted and logged. Commands are not retried; the next
// change carries the latest value anyway.
//
// DiagnosticPoller sends solicited Bus-B PID requests on an interval. The
// responses come back through ingress.
package egress
