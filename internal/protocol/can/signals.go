package can

import "fmt"

// Name identifies a decoded signal.
type Name string

// Broadcast signal names.
const (
	SignalBatteryCurrent Name = "battery_current"
	SignalBatteryVoltage Name = "battery_voltage"
	SignalDischargeLimit Name = "discharge_limit"
	SignalChargeLimit    Name = "charge_limit"
	SignalSOC            Name = "soc"
	SignalBatteryTemp    Name = "battery_temp"
	SignalBatteryTempMax Name = "battery_temp_max"
	SignalFaultCode      Name = "fault_code"
	SignalFlowFlags      Name = "flow_flags"
	SignalInjectorTime   Name = "injector_time"
	SignalThrottle       Name = "throttle"
	SignalBrake          Name = "brake"
	SignalFuelLevel      Name = "fuel_level"
	SignalRPM            Name = "rpm"
	SignalCoolantTemp    Name = "coolant_temp"
	SignalSpeed          Name = "speed"
	SignalGear           Name = "gear"
	SignalPackTemp       Name = "pack_temp"
	SignalPackTempMax    Name = "pack_temp_max"
)

// Diagnostic (PID) signal names.
const (
	SignalDiagSOC         Name = "diag_soc"
	SignalDeltaSOC        Name = "delta_soc"
	SignalMG1InverterTemp Name = "mg1_inverter_temp"
	SignalMG2InverterTemp Name = "mg2_inverter_temp"
	SignalMG1MotorTemp    Name = "mg1_motor_temp"
	SignalMG2MotorTemp    Name = "mg2_motor_temp"
	SignalAmbientTemp     Name = "ambient_temp"
	SignalDiagCoolantTemp Name = "diag_coolant_temp"
)

// Energy flow bits carried by SignalFlowFlags (byte 5 of 0x3B6).
const (
	FlowEngineToWheels  uint8 = 0x08
	FlowBatteryToMotor  uint8 = 0x10
	FlowMotorToBattery  uint8 = 0x20
	FlowEngineToBattery uint8 = 0x40
	FlowBatteryToWheels uint8 = 0x80
)

// Gear positions carried by SignalGear.
const (
	GearPark    = 0
	GearReverse = 1
	GearNeutral = 2
	GearDrive   = 3
	GearBrake   = 4
)

// Broadcast IDs with a decoder.
const (
	IDBrake        uint32 = 0x030
	IDEngineRPM    uint32 = 0x038
	IDEngineTemp   uint32 = 0x039
	IDBattery      uint32 = 0x03B
	IDSpeed        uint32 = 0x0B4
	IDGear         uint32 = 0x120
	IDThrottle     uint32 = 0x244
	IDPackTemp     uint32 = 0x348
	IDEnergyFlow   uint32 = 0x3B6
	IDBatteryState uint32 = 0x3CB
	IDBatteryFault uint32 = 0x3CD
	IDInjector     uint32 = 0x520
	IDFuelLevel    uint32 = 0x5A4
)

// Signal is one decoded physical value.
type Signal struct {
	Name  Name
	Value float64
	Unit  string
	Min   float64
	Max   float64

	// OutOfSpec is true when Value lies outside [Min, Max].
	OutOfSpec bool
}

// String returns "name=value unit" with an out-of-spec marker.
func (s Signal) String() string {
	mark := ""
	if s.OutOfSpec {
		mark = " (out of spec)"
	}
	return fmt.Sprintf("%s=%g%s%s", s.Name, s.Value, s.Unit, mark)
}

// signalSpec describes a signal's unit and documented range.
type signalSpec struct {
	name Name
	unit string
	min  float64
	max  float64
}

// with builds a Signal for v and flags it when out of range.
func (s signalSpec) with(v float64) Signal {
	return Signal{
		Name:      s.name,
		Value:     v,
		Unit:      s.unit,
		Min:       s.min,
		Max:       s.max,
		OutOfSpec: v < s.min || v > s.max,
	}
}

//nolint:mnd // documented signal ranges
var (
	specBatteryCurrent = signalSpec{SignalBatteryCurrent, "A", -200, 200}
	specBatteryVoltage = signalSpec{SignalBatteryVoltage, "V", 120, 255}
	specDischargeLimit = signalSpec{SignalDischargeLimit, "A", 0, 255}
	specChargeLimit    = signalSpec{SignalChargeLimit, "A", 0, 255}
	specSOC            = signalSpec{SignalSOC, "%", 0, 100}
	specBatteryTemp    = signalSpec{SignalBatteryTemp, "C", -20, 60}
	specBatteryTempMax = signalSpec{SignalBatteryTempMax, "C", -20, 60}
	specFaultCode      = signalSpec{SignalFaultCode, "", 0, 0xFFFF}
	specFlowFlags      = signalSpec{SignalFlowFlags, "", 0, 0xFF}
	specInjectorTime   = signalSpec{SignalInjectorTime, "", 0, 0xFFFF}
	specThrottle       = signalSpec{SignalThrottle, "", 0, 200}
	specBrake          = signalSpec{SignalBrake, "", 0, 127}
	specFuelLevel      = signalSpec{SignalFuelLevel, "L", 0, 45}
	specRPM            = signalSpec{SignalRPM, "rpm", 0, 5000}
	specCoolantTemp    = signalSpec{SignalCoolantTemp, "C", 40, 120}
	specSpeed          = signalSpec{SignalSpeed, "km/h", 0, 300}
	specGear           = signalSpec{SignalGear, "", GearPark, GearBrake}
	specPackTemp       = signalSpec{SignalPackTemp, "C", -40, 80}
	specPackTempMax    = signalSpec{SignalPackTempMax, "C", -40, 80}
)

// broadcastDecoder decodes one broadcast ID. minLen is checked before fn
// runs.
type broadcastDecoder struct {
	minLen int
	fn     func(d []byte) []Signal
}

//nolint:mnd // byte offsets from the bus documentation
var broadcastDecoders = map[uint32]broadcastDecoder{
	IDBattery: {5, func(d []byte) []Signal {
		raw := int(d[0]&0x0F)<<8 | int(d[1])
		if raw&0x800 != 0 {
			raw -= 0x1000
		}
		return []Signal{
			specBatteryCurrent.with(float64(raw) * 0.1),
			specBatteryVoltage.with(float64(d[3])),
		}
	}},
	IDBatteryState: {7, func(d []byte) []Signal {
		return []Signal{
			specDischargeLimit.with(float64(d[0])),
			specChargeLimit.with(float64(d[1])),
			specSOC.with(float64(d[3]) * 0.5),
			specBatteryTemp.with(float64(int8(d[4]))),
			specBatteryTempMax.with(float64(int8(d[5]))),
		}
	}},
	IDBatteryFault: {5, func(d []byte) []Signal {
		return []Signal{specFaultCode.with(float64(uint16(d[0])<<8 | uint16(d[1])))}
	}},
	IDEnergyFlow: {7, func(d []byte) []Signal {
		return []Signal{specFlowFlags.with(float64(d[5]))}
	}},
	IDInjector: {2, func(d []byte) []Signal {
		return []Signal{specInjectorTime.with(float64(uint16(d[0])<<8 | uint16(d[1])))}
	}},
	IDThrottle: {7, func(d []byte) []Signal {
		return []Signal{specThrottle.with(float64(d[6]))}
	}},
	IDBrake: {5, func(d []byte) []Signal {
		return []Signal{specBrake.with(float64(d[4]))}
	}},
	IDFuelLevel: {2, func(d []byte) []Signal {
		return []Signal{specFuelLevel.with(float64(d[1]))}
	}},
	IDEngineRPM: {2, func(d []byte) []Signal {
		return []Signal{specRPM.with(float64(d[1]) * 32)}
	}},
	IDEngineTemp: {1, func(d []byte) []Signal {
		return []Signal{specCoolantTemp.with(float64(d[0]))}
	}},
	IDSpeed: {7, func(d []byte) []Signal {
		return []Signal{specSpeed.with(float64(uint16(d[5])<<8|uint16(d[6])) * 0.01)}
	}},
	IDGear: {6, func(d []byte) []Signal {
		return []Signal{specGear.with(float64(d[5] & 0x0F))}
	}},
	IDPackTemp: {5, func(d []byte) []Signal {
		return []Signal{
			specPackTemp.with(float64(d[2]) - 40),
			specPackTempMax.with(float64(d[4]) - 40),
		}
	}},
}

// Decode decodes a broadcast frame into signals.
//
// Returns:
//   - []Signal: Decoded signals, out-of-range values flagged with OutOfSpec
//   - error: ErrUnknownID for IDs without a decoder, ErrShortFrame when the
//     frame is shorter than the ID's layout
func Decode(f Frame) ([]Signal, error) {
	dec, ok := broadcastDecoders[f.ID]
	if !ok || f.Extended {
		return nil, fmt.Errorf("%w: %03X", ErrUnknownID, f.ID)
	}
	if len(f.Data) < dec.minLen {
		return nil, fmt.Errorf("%w: %03X has %d bytes, need %d", ErrShortFrame, f.ID, len(f.Data), dec.minLen)
	}
	return dec.fn(f.Data), nil
}

// Known reports whether id has a broadcast decoder.
func Known(id uint32) bool {
	_, ok := broadcastDecoders[id]
	return ok
}
