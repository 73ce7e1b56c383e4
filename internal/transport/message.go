package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Channel identifies the bus or device a message belongs to.
type Channel int

// Known channels.
const (
	ChannelSystem        Channel = 0
	ChannelCAN           Channel = 1
	ChannelAVC           Channel = 2
	ChannelSatelliteBase Channel = 100
	ChannelDRL           Channel = 106
	ChannelLightSensor   Channel = 107
	ChannelLPG           Channel = 108
	ChannelVFD           Channel = 110
)

// IsSatellite reports whether c is a satellite unit channel.
func (c Channel) IsSatellite() bool {
	return c >= ChannelSatelliteBase
}

// String returns a short channel name.
func (c Channel) String() string {
	switch c {
	case ChannelSystem:
		return "system"
	case ChannelCAN:
		return "can"
	case ChannelAVC:
		return "avc"
	case ChannelDRL:
		return "drl"
	case ChannelLightSensor:
		return "light_sensor"
	case ChannelLPG:
		return "lpg"
	case ChannelVFD:
		return "vfd"
	}
	if c.IsSatellite() {
		return fmt.Sprintf("satellite_%d", int(c))
	}
	return fmt.Sprintf("channel_%d", int(c))
}

// CommandSend asks the gateway to transmit the bus frame in the payload.
const CommandSend = "send"

// RawMessage is one inbound gateway message.
type RawMessage struct {
	Channel Channel

	// Timestamp is the capture time. Zero when the gateway sent none.
	Timestamp time.Time

	// Seq is the gateway sequence number, nil when absent.
	Seq *uint32

	// Payload is the undecoded "d" value.
	Payload json.RawMessage
}

// OutgoingCommand is one command for the gateway.
type OutgoingCommand struct {
	Channel  Channel
	Command  string
	Payload  any
	Priority int
}

// envelope is the inbound line layout.
type envelope struct {
	ID      *int            `json:"id"`
	TS      *int64          `json:"ts,omitempty"`
	Seq     *uint32         `json:"seq,omitempty"`
	Payload json.RawMessage `json:"d"`
}

// ParseEnvelope parses one gateway line.
//
// Returns:
//   - RawMessage: Parsed message
//   - error: ErrInvalidEnvelope when the line is not a JSON object with a
//     channel id
func ParseEnvelope(line []byte) (RawMessage, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return RawMessage{}, fmt.Errorf("%w: empty line", ErrInvalidEnvelope)
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return RawMessage{}, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}
	if env.ID == nil {
		return RawMessage{}, fmt.Errorf("%w: missing id", ErrInvalidEnvelope)
	}
	if *env.ID < 0 {
		return RawMessage{}, fmt.Errorf("%w: negative id %d", ErrInvalidEnvelope, *env.ID)
	}

	msg := RawMessage{
		Channel: Channel(*env.ID),
		Seq:     env.Seq,
		Payload: env.Payload,
	}
	if env.TS != nil {
		msg.Timestamp = time.UnixMilli(*env.TS).UTC()
	}
	return msg, nil
}

// MarshalLine encodes the command as one gateway line, newline included.
func (c OutgoingCommand) MarshalLine() ([]byte, error) {
	out := struct {
		ID      int    `json:"id"`
		Command string `json:"cmd"`
		Payload any    `json:"d"`
	}{
		ID:      int(c.Channel),
		Command: c.Command,
		Payload: c.Payload,
	}
	if out.Payload == nil {
		out.Payload = struct{}{}
	}
	line, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encoding %s command: %w", c.Channel, err)
	}
	return append(line, '\n'), nil
}
