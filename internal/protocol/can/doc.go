// Package can implements the CAN codec for the Prius Gen 2 powertrain bus.
//
// Broadcast frames are decoded directly into Signals by a per-ID table.
// Every signal carries its documented range; a value outside the range is
// returned with OutOfSpec set instead of being dropped or trusted, because
// ECUs emit placeholder values during start-up.
//
// Diagnostic responses (IDs 0x7E8-0x7EF) may span several frames. The
// Assembler rebuilds them following ISO 15765-2 framing:
//
//	single frame       0x0L + L payload bytes
//	first frame        0x1L LL + 6 payload bytes (12-bit total length)
//	consecutive frame  0x2N + 7 payload bytes, N = 1..15 then 0..15
//
// A continuation that arrives out of sequence, or after the assembly timed
// out, discards the assembly. Partial payloads are never returned.
//
// Complete responses are decoded through the PID table, for example the
// hybrid battery block 0x21CF where SOC = 0.5 * A.
//
// # Thread Safety
//
// Decode and the PID helpers are pure. Assembler and Decoder keep per-ECU
// state and must be used from one goroutine.
package can
