package avclan

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/wire"
)

// Frame limits.
const (
	// MaxAddress is the largest 12-bit AVC-LAN address.
	MaxAddress Address = 0xFFF

	// maxControl is the largest 4-bit control nibble.
	maxControl = 0x0F

	// maxDataLength is the largest payload an AVC-LAN frame can carry.
	maxDataLength = 32
)

// Control nibbles used by known traffic.
const (
	ControlRequest byte = 0x00
	ControlCommand byte = 0x01
	ControlData    byte = 0x0F
)

// Address is a 12-bit AVC-LAN device address.
type Address uint16

// ParseAddress parses a hex address such as "190" or "0x190".
func ParseAddress(s string) (Address, error) {
	v, err := wire.ParseHex(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidAddress, err)
	}
	if v > uint64(MaxAddress) {
		return 0, fmt.Errorf("%w: %q exceeds 12 bits", ErrInvalidAddress, s)
	}
	return Address(v), nil
}

// String returns the address as three upper-case hex digits.
func (a Address) String() string {
	return fmt.Sprintf("%03X", uint16(a))
}

// Pair identifies a master to slave route.
type Pair struct {
	Master Address
	Slave  Address
}

// String returns the pair as "MMM->SSS".
func (p Pair) String() string {
	return p.Master.String() + "->" + p.Slave.String()
}

// Frame is one AVC-LAN frame as reported by the gateway.
type Frame struct {
	// Master is the sending device address.
	Master Address

	// Slave is the receiving device address (0xFFF/0x1FF for broadcast).
	Slave Address

	// Control is the 4-bit control nibble.
	Control byte

	// Data holds the payload bytes in bus order.
	Data []byte

	// Count is the gateway repeat counter. 1 for a fresh frame, N when the
	// gateway folded N identical successive frames together. Zero on
	// frames built locally for transmission.
	Count int
}

// gatewayFrame is the JSON layout used on the gateway link.
type gatewayFrame struct {
	Master  string     `json:"m"`
	Slave   string     `json:"s"`
	Control int        `json:"c"`
	Data    wire.Bytes `json:"d"`
	Count   int        `json:"cnt,omitempty"`
}

// ParseFrame parses the "d" object of a Bus-A gateway message.
//
// Parameters:
//   - payload: JSON object with m, s, c, d and optional cnt fields
//
// Returns:
//   - Frame: Parsed frame; Count defaults to 1 when absent
//   - error: ErrInvalidFrame or ErrInvalidAddress on malformed input
func ParseFrame(payload []byte) (Frame, error) {
	var gf gatewayFrame
	if err := json.Unmarshal(payload, &gf); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if gf.Master == "" || gf.Slave == "" {
		return Frame{}, fmt.Errorf("%w: missing master or slave address", ErrInvalidFrame)
	}

	master, err := ParseAddress(gf.Master)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: master: %w", ErrInvalidFrame, err)
	}
	slave, err := ParseAddress(gf.Slave)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: slave: %w", ErrInvalidFrame, err)
	}
	if gf.Control < 0 || gf.Control > maxControl {
		return Frame{}, fmt.Errorf("%w: control %d is not a nibble", ErrInvalidFrame, gf.Control)
	}
	if len(gf.Data) > maxDataLength {
		return Frame{}, fmt.Errorf("%w: %d data bytes (max %d)", ErrInvalidFrame, len(gf.Data), maxDataLength)
	}

	count := gf.Count
	if count < 1 {
		count = 1
	}

	return Frame{
		Master:  master,
		Slave:   slave,
		Control: byte(gf.Control),
		Data:    []byte(gf.Data),
		Count:   count,
	}, nil
}

// MarshalJSON encodes the frame in the gateway transmit format. The repeat
// counter is receive-only and is never written.
func (f Frame) MarshalJSON() ([]byte, error) {
	data := f.Data
	if data == nil {
		data = []byte{}
	}
	return json.Marshal(gatewayFrame{
		Master:  f.Master.String(),
		Slave:   f.Slave.String(),
		Control: int(f.Control),
		Data:    wire.Bytes(data),
	})
}

// Pair returns the frame's master/slave route.
func (f Frame) Pair() Pair {
	return Pair{Master: f.Master, Slave: f.Slave}
}

// IsBroadcast reports whether the frame is addressed to a broadcast group.
func (f Frame) IsBroadcast() bool {
	return f.Slave == 0xFFF || f.Slave == 0x1FF
}

// Equal reports whether two frames carry the same route, control and data.
// The repeat counter is ignored.
func (f Frame) Equal(other Frame) bool {
	return f.Master == other.Master &&
		f.Slave == other.Slave &&
		f.Control == other.Control &&
		bytes.Equal(f.Data, other.Data)
}

// String returns a compact human-readable representation.
func (f Frame) String() string {
	return fmt.Sprintf("AVC{%s c=%X d=% X}", f.Pair(), f.Control, f.Data)
}
