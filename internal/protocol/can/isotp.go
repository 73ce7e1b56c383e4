package can

import (
	"fmt"
	"time"
)

// DefaultAssemblyTimeout is the longest gap allowed between two frames of
// one multi-frame response.
const DefaultAssemblyTimeout = time.Second

// ISO-TP protocol control information, upper nibble of byte 0.
const (
	pciSingle      = 0x0
	pciFirst       = 0x1
	pciConsecutive = 0x2
	pciFlowControl = 0x3
)

// Multi-frame length limits.
const (
	maxSingleLength   = 7
	minMultiLength    = 8
	firstFramePayload = 6
	seqMask           = 0x0F
)

// assembly is one in-progress multi-frame response.
type assembly struct {
	total    int
	buf      []byte
	nextSeq  byte
	deadline time.Time
}

// Assembler rebuilds multi-frame diagnostic responses, keeping one
// accumulator per response ID.
//
// Thread Safety: not safe for concurrent use.
type Assembler struct {
	timeout time.Duration
	pending map[uint32]*assembly
}

// NewAssembler creates an assembler. A non-positive timeout selects
// DefaultAssemblyTimeout.
func NewAssembler(timeout time.Duration) *Assembler {
	if timeout <= 0 {
		timeout = DefaultAssemblyTimeout
	}
	return &Assembler{
		timeout: timeout,
		pending: make(map[uint32]*assembly),
	}
}

// Feed adds one frame and returns the payload once it is complete.
//
// Parameters:
//   - f: Frame received on a diagnostic response ID
//   - now: Receive time, used for the assembly deadline
//
// Returns:
//   - []byte: Complete payload (nil while assembling)
//   - bool: true when a payload is returned
//   - error: ErrInvalidFrame, ErrUnexpectedFrame, ErrOutOfSequence or
//     ErrAssemblyTimeout; the affected assembly is discarded
func (a *Assembler) Feed(f Frame, now time.Time) ([]byte, bool, error) {
	d := f.Data
	if len(d) == 0 {
		return nil, false, fmt.Errorf("%w: empty iso-tp frame on %03X", ErrInvalidFrame, f.ID)
	}

	switch d[0] >> 4 {
	case pciSingle:
		delete(a.pending, f.ID)
		n := int(d[0] & 0x0F)
		if n == 0 || n > maxSingleLength || n > len(d)-1 {
			return nil, false, fmt.Errorf("%w: single frame length %d on %03X", ErrInvalidFrame, n, f.ID)
		}
		return append([]byte(nil), d[1:1+n]...), true, nil

	case pciFirst:
		delete(a.pending, f.ID)
		if len(d) < 2+firstFramePayload {
			return nil, false, fmt.Errorf("%w: first frame has %d bytes on %03X", ErrInvalidFrame, len(d), f.ID)
		}
		total := int(d[0]&0x0F)<<8 | int(d[1])
		if total < minMultiLength {
			return nil, false, fmt.Errorf("%w: first frame length %d on %03X", ErrInvalidFrame, total, f.ID)
		}
		buf := make([]byte, 0, total)
		buf = append(buf, d[2:2+firstFramePayload]...)
		a.pending[f.ID] = &assembly{
			total:    total,
			buf:      buf,
			nextSeq:  1,
			deadline: now.Add(a.timeout),
		}
		return nil, false, nil

	case pciConsecutive:
		return a.consecutive(f, now)

	case pciFlowControl:
		// Flow control travels towards the ECU and carries no payload.
		return nil, false, nil

	default:
		return nil, false, fmt.Errorf("%w: pci %#x on %03X", ErrInvalidFrame, d[0]>>4, f.ID)
	}
}

func (a *Assembler) consecutive(f Frame, now time.Time) ([]byte, bool, error) {
	as, ok := a.pending[f.ID]
	if !ok {
		return nil, false, fmt.Errorf("%w: %03X", ErrUnexpectedFrame, f.ID)
	}
	if now.After(as.deadline) {
		delete(a.pending, f.ID)
		return nil, false, fmt.Errorf("%w: %03X after %s", ErrAssemblyTimeout, f.ID, a.timeout)
	}

	seq := f.Data[0] & seqMask
	if seq != as.nextSeq {
		delete(a.pending, f.ID)
		return nil, false, fmt.Errorf("%w: %03X got %d want %d", ErrOutOfSequence, f.ID, seq, as.nextSeq)
	}

	chunk := f.Data[1:]
	if remaining := as.total - len(as.buf); len(chunk) > remaining {
		chunk = chunk[:remaining]
	}
	as.buf = append(as.buf, chunk...)
	as.nextSeq = (as.nextSeq + 1) & seqMask
	as.deadline = now.Add(a.timeout)

	if len(as.buf) < as.total {
		return nil, false, nil
	}
	delete(a.pending, f.ID)
	return as.buf, true, nil
}

// Expire discards assemblies whose deadline passed and returns how many
// were dropped.
func (a *Assembler) Expire(now time.Time) int {
	n := 0
	for id, as := range a.pending {
		if now.After(as.deadline) {
			delete(a.pending, id)
			n++
		}
	}
	return n
}

// Pending returns the number of assemblies in progress.
func (a *Assembler) Pending() int {
	return len(a.pending)
}

// IsFirstFrame reports whether f opens a multi-frame response and needs a
// flow control answer.
func IsFirstFrame(f Frame) bool {
	return len(f.Data) > 0 && f.Data[0]>>4 == pciFirst
}
