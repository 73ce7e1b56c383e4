// Package telemetry mirrors the twin's state to external systems.
//
//	              Store.Subscribe (marks dirty slices)
//	                       │
//	        ┌──────────────┼───────────────┐
//	        ▼              ▼               │
//	   Publisher      InfluxRecorder       │
//	   Flush()        Record(now)          │
//	        │              │               │
//	        ▼              ▼               │
//	  MQTT retained   InfluxDB points      │
//	  state/{slice}   energy, vehicle      │
//	                                       │
//	  MQTT command/+ ──► CommandSubscriber ──► twin.Enqueue (user origin)
//
// Store callbacks only set bits; all network writes happen in Flush and
// Record, which the app loop calls once per tick. Command handlers run on
// the MQTT client's goroutines and never touch the store directly.
//
// # Key Types
//
//   - Publisher: retained JSON per state slice
//   - CommandSubscriber: remote commands to queued actions
//   - InfluxRecorder: time series of the energy and vehicle slices
package telemetry
