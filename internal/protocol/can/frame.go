package can

import (
	"encoding/json"
	"fmt"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/wire"
)

// Identifier limits.
const (
	maxStandardID = 0x7FF
	maxExtendedID = 0x1FFFFFFF
	maxDataLength = 8
)

// Frame is one CAN frame.
type Frame struct {
	ID       uint32
	Extended bool
	Data     []byte
}

// gatewayFrame is the JSON layout used on the gateway link. The ID may be
// a JSON number or a hex string.
type gatewayFrame struct {
	ID       json.RawMessage `json:"i"`
	Data     wire.Bytes      `json:"d"`
	Extended *bool           `json:"e,omitempty"`
}

// ParseFrame parses the "d" object of a Bus-B gateway message.
//
// IDs above 0x7FF are treated as extended when the "e" flag is absent.
//
// Returns:
//   - Frame: Parsed frame
//   - error: ErrInvalidFrame on malformed input
func ParseFrame(payload []byte) (Frame, error) {
	var gf gatewayFrame
	if err := json.Unmarshal(payload, &gf); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if len(gf.ID) == 0 {
		return Frame{}, fmt.Errorf("%w: missing id", ErrInvalidFrame)
	}

	id, err := wire.ParseNumber(gf.ID)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: id: %w", ErrInvalidFrame, err)
	}
	if id > maxExtendedID {
		return Frame{}, fmt.Errorf("%w: id %#x exceeds 29 bits", ErrInvalidFrame, id)
	}
	if len(gf.Data) > maxDataLength {
		return Frame{}, fmt.Errorf("%w: %d data bytes (max %d)", ErrInvalidFrame, len(gf.Data), maxDataLength)
	}

	extended := id > maxStandardID
	if gf.Extended != nil {
		if !*gf.Extended && extended {
			return Frame{}, fmt.Errorf("%w: id %#x does not fit a standard frame", ErrInvalidFrame, id)
		}
		extended = *gf.Extended
	}

	return Frame{
		ID:       uint32(id),
		Extended: extended,
		Data:     []byte(gf.Data),
	}, nil
}

// MarshalJSON encodes the frame in the gateway transmit format.
func (f Frame) MarshalJSON() ([]byte, error) {
	data := f.Data
	if data == nil {
		data = []byte{}
	}
	out := struct {
		ID       string     `json:"i"`
		Data     wire.Bytes `json:"d"`
		Extended bool       `json:"e,omitempty"`
	}{
		ID:       fmt.Sprintf("%03X", f.ID),
		Data:     wire.Bytes(data),
		Extended: f.Extended,
	}
	return json.Marshal(out)
}

// String returns a compact human-readable representation.
func (f Frame) String() string {
	return fmt.Sprintf("CAN{%03X d=% X}", f.ID, f.Data)
}
