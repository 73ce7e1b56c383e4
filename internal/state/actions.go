package state

import "time"

// Action describes one thing that happened. The set of actions is closed:
// only the types in this file implement it.
type Action interface {
	// Kind returns a stable snake_case name used in logs and the API.
	Kind() string

	// Source returns where the action came from.
	Source() Origin

	action()
}

// Tone selects an audio tone or spread parameter.
type Tone string

// Audio tone parameters.
const (
	ToneBass    Tone = "bass"
	ToneMid     Tone = "mid"
	ToneTreble  Tone = "treble"
	ToneBalance Tone = "balance"
	ToneFader   Tone = "fader"
)

// ClimateFlag selects a climate on/off setting.
type ClimateFlag string

// Climate flags.
const (
	FlagAC      ClimateFlag = "ac"
	FlagAuto    ClimateFlag = "auto"
	FlagRecirc  ClimateFlag = "recirc"
	FlagDefrost ClimateFlag = "defrost"
)

// Measurement selects a numeric Vehicle or Energy reading.
type Measurement string

// Measurements and the slice they belong to.
const (
	MeasSpeed          Measurement = "speed"            // Vehicle, km/h
	MeasRPM            Measurement = "rpm"              // Vehicle
	MeasThrottle       Measurement = "throttle"         // Vehicle, raw 0..200
	MeasBrake          Measurement = "brake"            // Vehicle, raw 0..127
	MeasFuelLevel      Measurement = "fuel_level"       // Vehicle, litres
	MeasLPGLevel       Measurement = "lpg_level"        // Vehicle, litres
	MeasFuelFlow       Measurement = "fuel_flow"        // Vehicle, L/h
	MeasCoolantTemp    Measurement = "coolant_temp"     // Vehicle, C
	MeasInverterTemp   Measurement = "inverter_temp"    // Vehicle, C
	MeasBatteryVoltage Measurement = "battery_voltage"  // Energy, V
	MeasBatteryCurrent Measurement = "battery_current"  // Energy, A
	MeasBatteryTemp    Measurement = "battery_temp"     // Energy, C
	MeasBatteryTempMax Measurement = "battery_temp_max" // Energy, C
	MeasDeltaSOC       Measurement = "delta_soc"        // Energy, %
)

// Bus selects one of the two vehicle buses.
type Bus string

// Buses.
const (
	BusA Bus = "avc_lan"
	BusB Bus = "can"
)

// DebugStream selects a raw frame kept for display.
type DebugStream string

// Debug streams.
const (
	DebugHybrid DebugStream = "hybrid"
	DebugEnergy DebugStream = "energy"
)

// Audio actions.
type (
	// SetVolume sets the master volume (0..63).
	SetVolume struct {
		Volume int
		Origin Origin
	}

	// SetMute mutes or unmutes the amplifier.
	SetMute struct {
		Muted  bool
		Origin Origin
	}

	// SetTone sets bass, mid or treble (-5..5) or balance, fader (-7..7).
	SetTone struct {
		Tone   Tone
		Value  int
		Origin Origin
	}

	// SetAudioSource records the active audio source.
	SetAudioSource struct {
		Name   string
		Origin Origin
	}
)

// Climate actions.
type (
	// SetTargetTemp sets the climate set point in °C (18..28).
	SetTargetTemp struct {
		Celsius float64
		Origin  Origin
	}

	// SetFanSpeed sets the blower speed (0..7).
	SetFanSpeed struct {
		Speed  int
		Origin Origin
	}

	// SetAirDirection sets the vent selection (0 face .. 3 defrost).
	SetAirDirection struct {
		Direction int
		Origin    Origin
	}

	// SetClimateFlag switches an on/off climate setting.
	SetClimateFlag struct {
		Flag   ClimateFlag
		On     bool
		Origin Origin
	}

	// SetOutsideTemp records the outside temperature.
	SetOutsideTemp struct {
		Celsius float64
		Origin  Origin
	}

	// SetInsideTemp records the cabin temperature.
	SetInsideTemp struct {
		Celsius float64
		Origin  Origin
	}
)

// Vehicle and energy actions.
type (
	// SetReady records the READY indicator.
	SetReady struct {
		Ready  bool
		Origin Origin
	}

	// SetIceRunning records whether the combustion engine runs.
	SetIceRunning struct {
		Running bool
		Origin  Origin
	}

	// SetGear records the shift position.
	SetGear struct {
		Gear   Gear
		Origin Origin
	}

	// SetMeasurement records one numeric reading.
	SetMeasurement struct {
		Measurement Measurement
		Value       float64
		Origin      Origin
	}

	// SetActiveFuel records the fuel in use.
	SetActiveFuel struct {
		Fuel   ActiveFuel
		Origin Origin
	}

	// SetLPGSignal records whether the LPG controller reports gas mode.
	SetLPGSignal struct {
		Active bool
		Origin Origin
	}

	// SetConsumption records the instant consumption figure.
	SetConsumption struct {
		Value  float64
		Unit   ConsumptionUnit
		Origin Origin
	}

	// SetSOC records the battery state of charge as a fraction (0..1).
	SetSOC struct {
		Fraction float64
		Origin   Origin
	}

	// SetEnergyFlow records the energy monitor flow bits.
	SetEnergyFlow struct {
		Flags  uint8
		Origin Origin
	}

	// SetFaultCode records the battery ECU fault code.
	SetFaultCode struct {
		Code   uint16
		Origin Origin
	}
)

// Lights, sensors, satellites and display actions.
type (
	// SetDRLMode selects the daytime running light mode.
	SetDRLMode struct {
		Mode   DRLMode
		Origin Origin
	}

	// SetDRLActive switches the daytime running lights.
	SetDRLActive struct {
		Active bool
		Origin Origin
	}

	// SetLightSensor records a light sensor reading.
	SetLightSensor struct {
		Level   int
		Daytime bool
		Origin  Origin
	}

	// SetRain records the rain sensor state.
	SetRain struct {
		Raining bool
		Origin  Origin
	}

	// SetVFD replaces the VFD projection.
	SetVFD struct {
		VFD    VFDState
		Origin Origin
	}

	// SetTimeBase selects the power chart time base in seconds.
	SetTimeBase struct {
		Seconds int
		Origin  Origin
	}

	// SetBrightness sets the VFD brightness in percent.
	SetBrightness struct {
		Percent int
		Origin  Origin
	}
)

// Connection, input and diagnostics actions.
type (
	// SetGatewayStatus records gateway readiness reported on the system
	// channel.
	SetGatewayStatus struct {
		Connected bool
		Version   string
		Origin    Origin
	}

	// SetBusReady records readiness of one bus interface.
	SetBusReady struct {
		Bus    Bus
		Ready  bool
		Origin Origin
	}

	// SetGatewayError records the last error reported by the gateway.
	SetGatewayError struct {
		Message string
		Origin  Origin
	}

	// SyncLink mirrors the transport state machine.
	SyncLink struct {
		State       LinkState
		Attempts    uint64
		Reconnects  uint64
		LastMessage time.Time
		Origin      Origin
	}

	// ButtonEvent records a steering wheel or panel button.
	ButtonEvent struct {
		Name    string
		Pressed bool
		Origin  Origin
	}

	// TouchEvent records a touch panel event.
	TouchEvent struct {
		X, Y    int
		Pressed bool
		Origin  Origin
	}

	// DebugFrame keeps the latest raw frame of a debug stream.
	DebugFrame struct {
		Stream DebugStream
		Hex    string
		Origin Origin
	}

	// SyncCounters mirrors the component fault counters.
	SyncCounters struct {
		Counters Counters
		Origin   Origin
	}
)

func (SetVolume) Kind() string { return "set_volume" }
func (SetMute) Kind() string { return "set_mute" }
func (SetTone) Kind() string { return "set_tone" }
func (SetAudioSource) Kind() string { return "set_audio_source" }
func (SetTargetTemp) Kind() string { return "set_target_temp" }
func (SetFanSpeed) Kind() string { return "set_fan_speed" }
func (SetAirDirection) Kind() string { return "set_air_direction" }
func (SetClimateFlag) Kind() string { return "set_climate_flag" }
func (SetOutsideTemp) Kind() string { return "set_outside_temp" }
func (SetInsideTemp) Kind() string { return "set_inside_temp" }
func (SetReady) Kind() string { return "set_ready" }
func (SetIceRunning) Kind() string { return "set_ice_running" }
func (SetGear) Kind() string { return "set_gear" }
func (SetMeasurement) Kind() string { return "set_measurement" }
func (SetActiveFuel) Kind() string { return "set_active_fuel" }
func (SetLPGSignal) Kind() string { return "set_lpg_signal" }
func (SetConsumption) Kind() string { return "set_consumption" }
func (SetSOC) Kind() string { return "set_soc" }
func (SetEnergyFlow) Kind() string { return "set_energy_flow" }
func (SetFaultCode) Kind() string { return "set_fault_code" }
func (SetDRLMode) Kind() string { return "set_drl_mode" }
func (SetDRLActive) Kind() string { return "set_drl_active" }
func (SetLightSensor) Kind() string { return "set_light_sensor" }
func (SetRain) Kind() string { return "set_rain" }
func (SetVFD) Kind() string { return "set_vfd" }
func (SetTimeBase) Kind() string { return "set_time_base" }
func (SetBrightness) Kind() string { return "set_brightness" }
func (SetGatewayStatus) Kind() string { return "set_gateway_status" }
func (SetBusReady) Kind() string { return "set_bus_ready" }
func (SetGatewayError) Kind() string { return "set_gateway_error" }
func (SyncLink) Kind() string { return "sync_link" }
func (ButtonEvent) Kind() string { return "button_event" }
func (TouchEvent) Kind() string { return "touch_event" }
func (DebugFrame) Kind() string { return "debug_frame" }
func (SyncCounters) Kind() string { return "sync_counters" }

func (a SetVolume) Source() Origin { return a.Origin }
func (a SetMute) Source() Origin { return a.Origin }
func (a SetTone) Source() Origin { return a.Origin }
func (a SetAudioSource) Source() Origin { return a.Origin }
func (a SetTargetTemp) Source() Origin { return a.Origin }
func (a SetFanSpeed) Source() Origin { return a.Origin }
func (a SetAirDirection) Source() Origin { return a.Origin }
func (a SetClimateFlag) Source() Origin { return a.Origin }
func (a SetOutsideTemp) Source() Origin { return a.Origin }
func (a SetInsideTemp) Source() Origin { return a.Origin }
func (a SetReady) Source() Origin { return a.Origin }
func (a SetIceRunning) Source() Origin { return a.Origin }
func (a SetGear) Source() Origin { return a.Origin }
func (a SetMeasurement) Source() Origin { return a.Origin }
func (a SetActiveFuel) Source() Origin { return a.Origin }
func (a SetLPGSignal) Source() Origin { return a.Origin }
func (a SetConsumption) Source() Origin { return a.Origin }
func (a SetSOC) Source() Origin { return a.Origin }
func (a SetEnergyFlow) Source() Origin { return a.Origin }
func (a SetFaultCode) Source() Origin { return a.Origin }
func (a SetDRLMode) Source() Origin { return a.Origin }
func (a SetDRLActive) Source() Origin { return a.Origin }
func (a SetLightSensor) Source() Origin { return a.Origin }
func (a SetRain) Source() Origin { return a.Origin }
func (a SetVFD) Source() Origin { return a.Origin }
func (a SetTimeBase) Source() Origin { return a.Origin }
func (a SetBrightness) Source() Origin { return a.Origin }
func (a SetGatewayStatus) Source() Origin { return a.Origin }
func (a SetBusReady) Source() Origin { return a.Origin }
func (a SetGatewayError) Source() Origin { return a.Origin }
func (a SyncLink) Source() Origin { return a.Origin }
func (a ButtonEvent) Source() Origin { return a.Origin }
func (a TouchEvent) Source() Origin { return a.Origin }
func (a DebugFrame) Source() Origin { return a.Origin }
func (a SyncCounters) Source() Origin { return a.Origin }

func (SetVolume) action() {}
func (SetMute) action() {}
func (SetTone) action() {}
func (SetAudioSource) action() {}
func (SetTargetTemp) action() {}
func (SetFanSpeed) action() {}
func (SetAirDirection) action() {}
func (SetClimateFlag) action() {}
func (SetOutsideTemp) action() {}
func (SetInsideTemp) action() {}
func (SetReady) action() {}
func (SetIceRunning) action() {}
func (SetGear) action() {}
func (SetMeasurement) action() {}
func (SetActiveFuel) action() {}
func (SetLPGSignal) action() {}
func (SetConsumption) action() {}
func (SetSOC) action() {}
func (SetEnergyFlow) action() {}
func (SetFaultCode) action() {}
func (SetDRLMode) action() {}
func (SetDRLActive) action() {}
func (SetLightSensor) action() {}
func (SetRain) action() {}
func (SetVFD) action() {}
func (SetTimeBase) action() {}
func (SetBrightness) action() {}
func (SetGatewayStatus) action() {}
func (SetBusReady) action() {}
func (SetGatewayError) action() {}
func (SyncLink) action() {}
func (ButtonEvent) action() {}
func (TouchEvent) action() {}
func (DebugFrame) action() {}
func (SyncCounters) action() {}
