package state

import (
	"fmt"
	"math"
)

// Fault reports a value the reducer had to clamp or replace.
type Fault struct {
	Action  string
	Field   string
	Value   float64
	Applied float64
}

// String returns a human-readable description.
func (f Fault) String() string {
	return fmt.Sprintf("%s: %s=%g out of range, applied %g", f.Action, f.Field, f.Value, f.Applied)
}

// measurementRange bounds each Measurement.
//
//nolint:mnd // documented ranges
var measurementRange = map[Measurement][2]float64{
	MeasSpeed:          {0, SpeedMax},
	MeasRPM:            {0, RPMMax},
	MeasThrottle:       {0, ThrottleMax},
	MeasBrake:          {0, BrakeMax},
	MeasFuelLevel:      {0, FuelLevelMax},
	MeasLPGLevel:       {0, LPGLevelMax},
	MeasFuelFlow:       {0, FuelFlowMax},
	MeasCoolantTemp:    {-40, 130},
	MeasInverterTemp:   {-40, 150},
	MeasBatteryVoltage: {0, 400},
	MeasBatteryCurrent: {-300, 300},
	MeasBatteryTemp:    {-40, 80},
	MeasBatteryTempMax: {-40, 80},
	MeasDeltaSOC:       {0, 60},
}

// Cabin and outside temperature bounds in °C.
const (
	ambientMin = -50.0
	ambientMax = 80.0
)

// reducer accumulates the next state and any faults for one action.
type reducer struct {
	next   AppState
	kind   string
	faults []Fault
}

// Reduce applies one action to s.
//
// Reduce is pure: the same state and action always give the same result.
// An action that changes nothing, or an unknown action, returns s and
// SliceNone.
//
// Returns:
//   - AppState: The next state (Version is not advanced here)
//   - Slices: The slices whose value changed
//   - []Fault: Values that were clamped
func Reduce(s AppState, a Action) (AppState, Slices, []Fault) {
	if a == nil {
		return s, SliceNone, nil
	}
	r := &reducer{next: s, kind: a.Kind()}
	r.apply(a)
	r.derive()
	return r.next, changedSlices(s, r.next), r.faults
}

//nolint:gocyclo // one case per action type
func (r *reducer) apply(a Action) {
	st := &r.next
	switch a := a.(type) {
	case SetVolume:
		st.Audio.Volume = r.clampInt("audio.volume", a.Volume, VolumeMin, VolumeMax)
	case SetMute:
		st.Audio.Muted = a.Muted
	case SetTone:
		r.applyTone(a)
	case SetAudioSource:
		st.Audio.Source = a.Name

	case SetTargetTemp:
		st.Climate.TargetTemp = r.clampFloat("climate.target_temp", a.Celsius, TargetTempMin, TargetTempMax)
	case SetFanSpeed:
		st.Climate.FanSpeed = r.clampInt("climate.fan_speed", a.Speed, FanMin, FanMax)
	case SetAirDirection:
		st.Climate.AirDirection = r.clampInt("climate.air_direction", a.Direction, AirDirMin, AirDirMax)
	case SetClimateFlag:
		switch a.Flag {
		case FlagAC:
			st.Climate.AC = a.On
		case FlagAuto:
			st.Climate.Auto = a.On
		case FlagRecirc:
			st.Climate.Recirc = a.On
		case FlagDefrost:
			st.Climate.Defrost = a.On
		}
	case SetOutsideTemp:
		st.Climate.OutsideTemp = r.clampFloat("climate.outside_temp", a.Celsius, ambientMin, ambientMax)
		st.Climate.OutsideKnown = true
	case SetInsideTemp:
		st.Climate.InsideTemp = r.clampFloat("climate.inside_temp", a.Celsius, ambientMin, ambientMax)

	case SetReady:
		st.Vehicle.Ready = a.Ready
	case SetIceRunning:
		st.Vehicle.IceRunning = a.Running
	case SetGear:
		switch a.Gear {
		case GearPark, GearReverse, GearNeutral, GearDrive, GearBrake:
			st.Vehicle.Gear = a.Gear
		}
	case SetMeasurement:
		r.applyMeasurement(a)
	case SetActiveFuel:
		switch a.Fuel {
		case FuelOff, FuelPetrol, FuelLPG:
			st.Vehicle.ActiveFuel = a.Fuel
		}
	case SetLPGSignal:
		st.Vehicle.LPGSignalled = a.Active
	case SetConsumption:
		if a.Unit != UnitLitresPerHour && a.Unit != UnitLitresPer100Km {
			return
		}
		st.Vehicle.InstantConsumption = r.clampFloat("vehicle.instant_consumption", a.Value, 0, ConsumptionMax)
		st.Vehicle.ConsumptionUnit = a.Unit

	case SetSOC:
		st.Energy.SOC = r.clampFloat("energy.soc", a.Fraction, 0, 1)
	case SetEnergyFlow:
		st.Energy.FlowFlags = a.Flags
	case SetFaultCode:
		st.Energy.FaultCode = a.Code

	case SetDRLMode:
		switch a.Mode {
		case DRLOff, DRLOn, DRLAuto:
			st.Lights.DRLMode = a.Mode
		}
	case SetDRLActive:
		st.Lights.DRLActive = a.Active
	case SetLightSensor:
		st.Sensors.LightLevel = r.clampInt("sensors.light_level", a.Level, LightLevelMin, LightLevelMax)
		st.Sensors.IsDaytime = a.Daytime
	case SetRain:
		st.Sensors.IsRaining = a.Raining
	case SetVFD:
		st.Satellites.VFD = r.clampVFD(a.VFD)
	case SetTimeBase:
		st.Display.PowerChartTimeBase = r.snapTimeBase(a.Seconds)
	case SetBrightness:
		st.Satellites.VFD.Brightness = r.clampInt("satellites.vfd.brightness", a.Percent, BrightnessMin, BrightnessMax)

	case SetGatewayStatus:
		st.Connection.GatewayConnected = a.Connected
		if a.Version != "" {
			st.Connection.GatewayVersion = a.Version
		}
		if a.Connected {
			st.Connection.LastError = ""
		}
	case SetBusReady:
		switch a.Bus {
		case BusA:
			st.Connection.BusAReady = a.Ready
		case BusB:
			st.Connection.BusBReady = a.Ready
		}
	case SetGatewayError:
		st.Connection.LastError = a.Message
	case SyncLink:
		st.Connection.Link = a.State
		st.Connection.ConnectAttempts = a.Attempts
		st.Connection.Reconnects = a.Reconnects
		st.Connection.LastMessage = a.LastMessage
		if a.State != LinkConnected {
			st.Connection.GatewayConnected = false
			st.Connection.BusAReady = false
			st.Connection.BusBReady = false
		}

	case ButtonEvent:
		if a.Pressed {
			st.Input.ButtonPresses++
		}
		st.Input.LastButton = a.Name
	case TouchEvent:
		if a.Pressed {
			st.Input.TouchEvents++
		}
		st.Input.LastTouchX = a.X
		st.Input.LastTouchY = a.Y
	case DebugFrame:
		switch a.Stream {
		case DebugHybrid:
			st.Input.HybridDebug = a.Hex
		case DebugEnergy:
			st.Input.EnergyDebug = a.Hex
		}
	case SyncCounters:
		st.Diagnostics.Counters = a.Counters
	}
}

func (r *reducer) applyTone(a SetTone) {
	audio := &r.next.Audio
	field := "audio." + string(a.Tone)
	switch a.Tone {
	case ToneBass:
		audio.Bass = r.clampInt(field, a.Value, ToneMin, ToneMax)
	case ToneMid:
		audio.Mid = r.clampInt(field, a.Value, ToneMin, ToneMax)
	case ToneTreble:
		audio.Treble = r.clampInt(field, a.Value, ToneMin, ToneMax)
	case ToneBalance:
		audio.Balance = r.clampInt(field, a.Value, SpreadMin, SpreadMax)
	case ToneFader:
		audio.Fader = r.clampInt(field, a.Value, SpreadMin, SpreadMax)
	}
}

func (r *reducer) applyMeasurement(a SetMeasurement) {
	bounds, ok := measurementRange[a.Measurement]
	if !ok {
		return
	}
	v := r.clampFloat(string(a.Measurement), a.Value, bounds[0], bounds[1])

	veh, en := &r.next.Vehicle, &r.next.Energy
	switch a.Measurement {
	case MeasSpeed:
		veh.SpeedKph = v
	case MeasRPM:
		veh.RPM = v
	case MeasThrottle:
		veh.Throttle = v
	case MeasBrake:
		veh.Brake = v
	case MeasFuelLevel:
		veh.FuelLevel = v
	case MeasLPGLevel:
		veh.LPGLevel = v
	case MeasFuelFlow:
		veh.FuelFlowLph = v
	case MeasCoolantTemp:
		veh.CoolantTemp = v
	case MeasInverterTemp:
		veh.InverterTemp = v
	case MeasBatteryVoltage:
		en.BatteryVoltage = v
	case MeasBatteryCurrent:
		en.BatteryCurrent = v
	case MeasBatteryTemp:
		en.BatteryTemp = v
	case MeasBatteryTempMax:
		en.BatteryTempMax = v
	case MeasDeltaSOC:
		en.DeltaSOC = v
	}
}

//nolint:mnd // normalised VFD ranges
func (r *reducer) clampVFD(v VFDState) VFDState {
	v.MGPower = r.clampFloat("satellites.vfd.mg_power", v.MGPower, -1, 1)
	v.FuelFlow = r.clampFloat("satellites.vfd.fuel_flow", v.FuelFlow, 0, 1)
	v.Brake = r.clampFloat("satellites.vfd.brake", v.Brake, 0, 1)
	v.Speed = r.clampFloat("satellites.vfd.speed", v.Speed, 0, 1)
	v.SOC = r.clampFloat("satellites.vfd.soc", v.SOC, 0, 1)
	v.PetrolLevel = r.clampFloat("satellites.vfd.petrol_level", v.PetrolLevel, 0, FuelLevelMax)
	v.LPGLevel = r.clampFloat("satellites.vfd.lpg_level", v.LPGLevel, 0, LPGLevelMax)
	v.Brightness = r.clampInt("satellites.vfd.brightness", v.Brightness, BrightnessMin, BrightnessMax)
	return v
}

// snapTimeBase returns the allowed time base closest to seconds.
func (r *reducer) snapTimeBase(seconds int) int {
	best := PowerChartTimeBases[0]
	for _, tb := range PowerChartTimeBases {
		if tb == seconds {
			return tb
		}
		if abs(tb-seconds) < abs(best-seconds) {
			best = tb
		}
	}
	r.fault("display.power_chart_time_base", float64(seconds), float64(best))
	return best
}

// derive recomputes fields that are functions of other fields.
//
//nolint:mnd // current dead band in A
func (r *reducer) derive() {
	veh, en := &r.next.Vehicle, &r.next.Energy
	veh.Park = veh.Gear == GearPark

	en.EngineToWheels = en.FlowFlags&0x08 != 0
	en.BatteryToMotor = en.FlowFlags&0x10 != 0
	en.MotorToBattery = en.FlowFlags&0x20 != 0
	en.EngineToBattery = en.FlowFlags&0x40 != 0
	en.BatteryToWheels = en.FlowFlags&0x80 != 0

	en.Charging = en.BatteryCurrent < -0.5
	en.Discharging = en.BatteryCurrent > 0.5
	en.Regenerating = en.Charging && veh.SpeedKph > 0 && !veh.IceRunning
}

func (r *reducer) clampInt(field string, v, lo, hi int) int {
	switch {
	case v < lo:
		r.fault(field, float64(v), float64(lo))
		return lo
	case v > hi:
		r.fault(field, float64(v), float64(hi))
		return hi
	}
	return v
}

func (r *reducer) clampFloat(field string, v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		r.fault(field, v, lo)
		return lo
	case v < lo:
		r.fault(field, v, lo)
		return lo
	case v > hi:
		r.fault(field, v, hi)
		return hi
	}
	return v
}

func (r *reducer) fault(field string, value, applied float64) {
	r.faults = append(r.faults, Fault{Action: r.kind, Field: field, Value: value, Applied: applied})
}

// changedSlices compares two states slice by slice.
func changedSlices(prev, next AppState) Slices {
	var changed Slices
	if prev.Audio != next.Audio {
		changed |= SliceAudio
	}
	if prev.Climate != next.Climate {
		changed |= SliceClimate
	}
	if prev.Vehicle != next.Vehicle {
		changed |= SliceVehicle
	}
	if prev.Energy != next.Energy {
		changed |= SliceEnergy
	}
	if prev.Lights != next.Lights {
		changed |= SliceLights
	}
	if prev.Sensors != next.Sensors {
		changed |= SliceSensors
	}
	if prev.Satellites != next.Satellites {
		changed |= SliceSatellites
	}
	if !prev.Connection.equal(next.Connection) {
		changed |= SliceConnection
	}
	if prev.Input != next.Input {
		changed |= SliceInput
	}
	if prev.Display != next.Display {
		changed |= SliceDisplay
	}
	if prev.Diagnostics != next.Diagnostics {
		changed |= SliceDiagnostics
	}
	return changed
}

// equal compares connection states. Timestamps are compared as instants.
func (c ConnectionState) equal(o ConnectionState) bool {
	c.LastMessage, o.LastMessage = c.LastMessage.UTC(), o.LastMessage.UTC()
	return c == o
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
