package can

import "fmt"

// ECU request and response IDs.
const (
	ECUEngine        uint32 = 0x7E0
	ECUHybrid        uint32 = 0x7E2
	responseOffset   uint32 = 0x08
	firstResponseID  uint32 = 0x7E8
	lastResponseID   uint32 = 0x7EF
	negativeResponse byte   = 0x7F
	positiveResponse byte   = 0x40
)

const requestFrameBytes = 8

// Diagnostic service modes.
const (
	ModeCurrentData  byte = 0x01
	ModeManufacturer byte = 0x21
)

// PID identifies a diagnostic data request on one ECU.
type PID struct {
	ECU  uint32
	Mode byte
	Code byte
}

// String returns the PID as "7E2:21CF".
func (p PID) String() string {
	return fmt.Sprintf("%03X:%02X%02X", p.ECU, p.Mode, p.Code)
}

// Known diagnostic PIDs.
var (
	PIDHybridBattery = PID{ECU: ECUHybrid, Mode: ModeManufacturer, Code: 0xCF}
	PIDInverterTemps = PID{ECU: ECUHybrid, Mode: ModeManufacturer, Code: 0xC3}
	PIDAmbientTemp   = PID{ECU: ECUEngine, Mode: ModeCurrentData, Code: 0x46}
	PIDCoolantTemp   = PID{ECU: ECUEngine, Mode: ModeCurrentData, Code: 0x05}
)

// pidField reads one data byte (A = 0) as byte*scale + offset.
type pidField struct {
	spec   signalSpec
	index  int
	scale  float64
	offset float64
}

//nolint:mnd // data byte offsets and scaling from the PID documentation
var pidTable = map[PID][]pidField{
	PIDHybridBattery: {
		{signalSpec{SignalDiagSOC, "%", 0, 100}, 0, 0.5, 0},
		{signalSpec{SignalDeltaSOC, "%", 0, 60}, 6, 0.01, 0},
	},
	PIDInverterTemps: {
		{signalSpec{SignalMG1InverterTemp, "C", -40, 150}, 24, 1, -40},
		{signalSpec{SignalMG2InverterTemp, "C", -40, 150}, 25, 1, -40},
		{signalSpec{SignalMG2MotorTemp, "C", -40, 150}, 26, 1, -40},
		{signalSpec{SignalMG1MotorTemp, "C", -40, 150}, 27, 1, -40},
	},
	PIDAmbientTemp: {
		{signalSpec{SignalAmbientTemp, "C", -40, 80}, 0, 1, -40},
	},
	PIDCoolantTemp: {
		{signalSpec{SignalDiagCoolantTemp, "C", -40, 130}, 0, 1, -40},
	},
}

// IsDiagnosticResponse reports whether id is an ECU response ID.
func IsDiagnosticResponse(id uint32) bool {
	return id >= firstResponseID && id <= lastResponseID
}

// EncodeRequest builds a single-frame request for pid.
//
// Returns:
//   - Frame: Request frame padded to 8 bytes
//   - error: ErrUnknownPID when pid has no table entry
func EncodeRequest(pid PID) (Frame, error) {
	if _, ok := pidTable[pid]; !ok {
		return Frame{}, fmt.Errorf("%w: %s", ErrUnknownPID, pid)
	}
	data := make([]byte, requestFrameBytes)
	data[0] = 0x02
	data[1] = pid.Mode
	data[2] = pid.Code
	return Frame{ID: pid.ECU, Data: data}, nil
}

// FlowControl builds the clear-to-send frame answering a first frame
// received on responseID. Block size and separation time are zero, so the
// ECU sends the rest without waiting.
func FlowControl(responseID uint32) Frame {
	data := make([]byte, requestFrameBytes)
	data[0] = pciFlowControl << 4
	return Frame{ID: responseID - responseOffset, Data: data}
}

// DecodeResponse decodes a complete diagnostic payload received on
// responseID.
//
// Returns:
//   - PID: The PID the payload answers
//   - []Signal: Decoded signals, out-of-range values flagged
//   - error: ErrNegativeResponse, ErrUnknownPID or ErrShortFrame
func DecodeResponse(responseID uint32, payload []byte) (PID, []Signal, error) {
	if len(payload) < 2 {
		return PID{}, nil, fmt.Errorf("%w: response of %d bytes", ErrShortFrame, len(payload))
	}
	if payload[0] == negativeResponse {
		nrc := byte(0)
		if len(payload) > 2 {
			nrc = payload[2]
		}
		return PID{}, nil, fmt.Errorf("%w: mode %02X code %02X", ErrNegativeResponse, payload[1], nrc)
	}

	pid := PID{
		ECU:  responseID - responseOffset,
		Mode: payload[0] &^ positiveResponse,
		Code: payload[1],
	}
	fields, ok := pidTable[pid]
	if !ok {
		return pid, nil, fmt.Errorf("%w: %s", ErrUnknownPID, pid)
	}

	data := payload[2:]
	signals := make([]Signal, 0, len(fields))
	for _, f := range fields {
		if f.index >= len(data) {
			return pid, nil, fmt.Errorf("%w: %s needs byte %d, have %d", ErrShortFrame, pid, f.index, len(data))
		}
		signals = append(signals, f.spec.with(float64(data[f.index])*f.scale+f.offset))
	}
	return pid, signals, nil
}

// PIDs returns every PID with a table entry, in polling order.
func PIDs() []PID {
	return []PID{PIDHybridBattery, PIDInverterTemps, PIDAmbientTemp, PIDCoolantTemp}
}
