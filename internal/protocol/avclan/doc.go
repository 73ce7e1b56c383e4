// Package avclan implements the AVC-LAN (IEBus) codec for the Prius Gen 2.
//
// AVC-LAN is Toyota's multimedia bus. Every frame carries a 12-bit master
// address, a 12-bit slave address, a 4-bit control nibble and up to 32 data
// bytes. The gateway firmware samples the PWM bit timing and hands frames to
// the host as JSON objects:
//
//	{"m": "190", "s": "440", "c": 15, "d": ["00", "25", "74", "93", "12"], "cnt": 1}
//
// # Decoding
//
// Decode turns a Frame into zero or more typed events using a static table
// of master/slave pairs. Pairs with composite payloads are described with
// field extractors (byte offset, bitmask, linear scale). Unrecognised pairs
// produce an Unparsed event so unknown traffic stays observable.
//
// The gateway collapses identical successive frames and reports the repeat
// count in "cnt". A frame with Count > 1 describes traffic that was already
// delivered, so Decode marks it as a repeat and emits no events.
//
// # Commands
//
// Encode builds the frame for a semantic Command and DecodeCommand is its
// inverse:
//
//	frame, err := avclan.Encode(avclan.Command{Kind: avclan.CmdSetBass, Value: 3})
//	cmd, ok := avclan.DecodeCommand(frame) // cmd == {CmdSetBass, 3}
//
// Parity and acknowledge bits are generated by the gateway, so frames carry
// no trailer byte.
//
// # Thread Safety
//
// All functions are pure and safe for concurrent use.
package avclan
