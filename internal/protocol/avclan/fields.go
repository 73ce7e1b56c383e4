package avclan

// linear extracts one byte and scales it: value = raw*Scale + Offset.
type linear struct {
	Index  int
	Scale  float64
	Offset float64
}

// read returns the scaled value, or false when the frame is too short.
func (l linear) read(data []byte) (float64, bool) {
	if l.Index >= len(data) {
		return 0, false
	}
	return float64(data[l.Index])*l.Scale + l.Offset, true
}

// bitflag extracts a masked bit group from one byte.
type bitflag struct {
	Index int
	Mask  byte
}

// set reports whether any masked bit is set.
func (b bitflag) set(data []byte) bool {
	return b.Index < len(data) && data[b.Index]&b.Mask != 0
}

// value returns the masked bits shifted down to bit 0.
func (b bitflag) value(data []byte) byte {
	if b.Index >= len(data) || b.Mask == 0 {
		return 0
	}
	v := data[b.Index] & b.Mask
	for m := b.Mask; m&1 == 0; m >>= 1 {
		v >>= 1
	}
	return v
}

// Field layouts of the composite payloads.
var (
	// 0x10C -> 0x310: outside temperature, (b4 - 18) / 2 when b6 == 0x90.
	outsideTempField  = linear{Index: 4, Scale: 0.5, Offset: -9}
	outsideTempMarker = bitflag{Index: 6, Mask: 0xFF}

	// 0x130 broadcast: mode byte with recirculation bit and air mode nibble,
	// ambient candidates in bytes 3 and 4 with a -40 °C offset.
	climateRecirc   = bitflag{Index: 1, Mask: 0x10}
	climateAirMode  = bitflag{Index: 1, Mask: 0x0F}
	climateAmbient3 = linear{Index: 3, Scale: 1, Offset: -40}
	climateAmbient4 = linear{Index: 4, Scale: 1, Offset: -40}
)
