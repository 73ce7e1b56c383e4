// Package wire holds the JSON value encodings shared by the gateway codecs.
//
// The gateway writes byte arrays either as two-digit hex strings ("0A") or
// as plain numbers, depending on firmware version. Both are accepted on
// input; output always uses hex strings.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidValue is returned when a JSON value cannot be read as a byte or
// hex number.
var ErrInvalidValue = errors.New("wire: invalid value")

// Bytes is a byte slice that unmarshals from a JSON array of hex strings or
// numbers and marshals to an array of two-digit upper-case hex strings.
type Bytes []byte

// UnmarshalJSON implements json.Unmarshaler.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("%w: expected array: %w", ErrInvalidValue, err)
	}

	out := make([]byte, 0, len(items))
	for i, item := range items {
		v, err := ParseNumber(item)
		if err != nil {
			return fmt.Errorf("byte %d: %w", i, err)
		}
		if v > 0xFF { //nolint:mnd // byte range
			return fmt.Errorf("%w: byte %d out of range (%d)", ErrInvalidValue, i, v)
		}
		out = append(out, byte(v))
	}
	*b = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (b Bytes) MarshalJSON() ([]byte, error) {
	hex := make([]string, len(b))
	for i, v := range b {
		hex[i] = fmt.Sprintf("%02X", v)
	}
	return json.Marshal(hex)
}

// ParseNumber reads a JSON number or a hex string ("1A", "0x1A") as an
// unsigned integer.
func ParseNumber(raw json.RawMessage) (uint64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return ParseHex(s)
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidValue, string(raw))
	}
	v, err := strconv.ParseUint(n.String(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrInvalidValue, n)
	}
	return v, nil
}

// ParseHex parses a hex string with or without a 0x prefix.
func ParseHex(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return 0, fmt.Errorf("%w: empty hex string", ErrInvalidValue)
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return v, nil
}
