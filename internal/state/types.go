package state

import (
	"fmt"
	"strings"
	"time"
)

// Origin tells where an Action came from.
type Origin string

// Action origins.
const (
	// OriginHardware marks values reported by the car's buses.
	OriginHardware Origin = "hardware"
	// OriginUser marks requests from the UI, API or remote commands.
	OriginUser Origin = "user"
	// OriginInternal marks bookkeeping updates (connection, settings load).
	OriginInternal Origin = "internal"
	// OriginRule marks values computed by rules.
	OriginRule Origin = "rule"
)

// Gear is the selected shift position.
type Gear string

// Gear positions.
const (
	GearPark    Gear = "P"
	GearReverse Gear = "R"
	GearNeutral Gear = "N"
	GearDrive   Gear = "D"
	GearBrake   Gear = "B"
)

// ActiveFuel is the fuel the engine is currently burning.
type ActiveFuel string

// Fuel selections.
const (
	FuelOff    ActiveFuel = "OFF"
	FuelPetrol ActiveFuel = "PTR"
	FuelLPG    ActiveFuel = "LPG"
)

// DRLMode is the daytime running light setting.
type DRLMode string

// DRL modes.
const (
	DRLOff  DRLMode = "OFF"
	DRLOn   DRLMode = "ON"
	DRLAuto DRLMode = "AUTO"
)

// ConsumptionUnit is the unit of the instant consumption figure.
type ConsumptionUnit string

// Consumption units.
const (
	UnitLitresPerHour  ConsumptionUnit = "L/h"
	UnitLitresPer100Km ConsumptionUnit = "L/100km"
)

// LinkState mirrors the gateway transport state.
type LinkState string

// Link states.
const (
	LinkDisconnected LinkState = "disconnected"
	LinkConnecting   LinkState = "connecting"
	LinkConnected    LinkState = "connected"
	LinkStopped      LinkState = "stopped"
)

// ParseDRLMode parses "off", "on" or "auto" in any case.
func ParseDRLMode(s string) (DRLMode, error) {
	switch m := DRLMode(strings.ToUpper(strings.TrimSpace(s))); m {
	case DRLOff, DRLOn, DRLAuto:
		return m, nil
	}
	return "", fmt.Errorf("%w: drl mode %q", ErrUnknownEnum, s)
}

// ParseActiveFuel parses "off", "ptr" or "lpg" in any case.
func ParseActiveFuel(s string) (ActiveFuel, error) {
	switch f := ActiveFuel(strings.ToUpper(strings.TrimSpace(s))); f {
	case FuelOff, FuelPetrol, FuelLPG:
		return f, nil
	}
	return "", fmt.Errorf("%w: fuel %q", ErrUnknownEnum, s)
}

// Documented slice ranges.
//
//nolint:mnd // range table
const (
	VolumeMin, VolumeMax         = 0, 63
	ToneMin, ToneMax             = -5, 5
	SpreadMin, SpreadMax         = -7, 7
	TargetTempMin, TargetTempMax = 18.0, 28.0
	FanMin, FanMax               = 0, 7
	AirDirMin, AirDirMax         = 0, 3
	LightLevelMin, LightLevelMax = 0, 1023
	BrightnessMin, BrightnessMax = 0, 100
	SpeedMax                     = 300.0
	RPMMax                       = 8000.0
	ThrottleMax                  = 200.0
	BrakeMax                     = 127.0
	FuelLevelMax                 = 45.0
	LPGLevelMax                  = 60.0
	FuelFlowMax                  = 30.0
	ConsumptionMax               = 99.9
)

// PowerChartTimeBases lists the allowed power chart time bases in seconds.
var PowerChartTimeBases = [...]int{15, 60, 300, 900, 3600}

// AudioState is the head unit / amplifier state.
type AudioState struct {
	Volume  int    `json:"volume"`
	Bass    int    `json:"bass"`
	Mid     int    `json:"mid"`
	Treble  int    `json:"treble"`
	Balance int    `json:"balance"`
	Fader   int    `json:"fader"`
	Muted   bool   `json:"muted"`
	Source  string `json:"source"`
}

// ClimateState is the air conditioning state.
type ClimateState struct {
	TargetTemp   float64 `json:"target_temp"`
	FanSpeed     int     `json:"fan_speed"`
	AC           bool    `json:"ac"`
	Auto         bool    `json:"auto"`
	Recirc       bool    `json:"recirc"`
	Defrost      bool    `json:"defrost"`
	AirDirection int     `json:"air_direction"`
	InsideTemp   float64 `json:"inside_temp"`
	OutsideTemp  float64 `json:"outside_temp"`

	// OutsideKnown is false until the first outside temperature report.
	OutsideKnown bool `json:"outside_known"`
}

// VehicleState is the drivetrain state.
type VehicleState struct {
	Ready              bool            `json:"ready"`
	Park               bool            `json:"park"`
	IceRunning         bool            `json:"ice_running"`
	Gear               Gear            `json:"gear"`
	SpeedKph           float64         `json:"speed_kph"`
	RPM                float64         `json:"rpm"`
	Throttle           float64         `json:"throttle"`
	Brake              float64         `json:"brake"`
	FuelLevel          float64         `json:"fuel_level"`
	LPGLevel           float64         `json:"lpg_level"`
	LPGSignalled       bool            `json:"lpg_signalled"`
	ActiveFuel         ActiveFuel      `json:"active_fuel"`
	FuelFlowLph        float64         `json:"fuel_flow_lph"`
	InstantConsumption float64         `json:"instant_consumption"`
	ConsumptionUnit    ConsumptionUnit `json:"consumption_unit"`
	CoolantTemp        float64         `json:"coolant_temp"`
	InverterTemp       float64         `json:"inverter_temp"`
}

// EnergyState is the hybrid battery state.
type EnergyState struct {
	SOC             float64 `json:"soc"`
	BatteryVoltage  float64 `json:"battery_voltage"`
	BatteryCurrent  float64 `json:"battery_current"`
	BatteryTemp     float64 `json:"battery_temp"`
	BatteryTempMax  float64 `json:"battery_temp_max"`
	DeltaSOC        float64 `json:"delta_soc"`
	FlowFlags       uint8   `json:"flow_flags"`
	EngineToWheels  bool    `json:"engine_to_wheels"`
	BatteryToMotor  bool    `json:"battery_to_motor"`
	MotorToBattery  bool    `json:"motor_to_battery"`
	EngineToBattery bool    `json:"engine_to_battery"`
	BatteryToWheels bool    `json:"battery_to_wheels"`
	Charging        bool    `json:"charging"`
	Discharging     bool    `json:"discharging"`
	Regenerating    bool    `json:"regenerating"`
	FaultCode       uint16  `json:"fault_code"`
}

// PowerKW returns the battery power in kW. Positive when discharging.
func (e EnergyState) PowerKW() float64 {
	return e.BatteryVoltage * e.BatteryCurrent / 1000 //nolint:mnd // W to kW
}

// LightsState is the exterior lighting state.
type LightsState struct {
	DRLMode   DRLMode `json:"drl_mode"`
	DRLActive bool    `json:"drl_active"`
}

// SensorsState holds readings from satellite sensor units.
type SensorsState struct {
	IsDaytime  bool `json:"is_daytime"`
	IsRaining  bool `json:"is_raining"`
	LightLevel int  `json:"light_level"`
}

// VFDState is the projection shown on the VFD satellite display.
type VFDState struct {
	MGPower     float64    `json:"mg_power"`
	FuelFlow    float64    `json:"fuel_flow"`
	Brake       float64    `json:"brake"`
	Speed       float64    `json:"speed"`
	SOC         float64    `json:"soc"`
	PetrolLevel float64    `json:"petrol_level"`
	LPGLevel    float64    `json:"lpg_level"`
	ICE         bool       `json:"ice"`
	Gear        Gear       `json:"gear"`
	ActiveFuel  ActiveFuel `json:"active_fuel"`
	Ready       bool       `json:"ready"`
	TimeBase    int        `json:"time_base"`
	Brightness  int        `json:"brightness"`
}

// SatellitesState holds projections for satellite units.
type SatellitesState struct {
	VFD VFDState `json:"vfd"`
}

// ConnectionState mirrors gateway and bus readiness.
type ConnectionState struct {
	GatewayConnected bool      `json:"gateway_connected"`
	GatewayVersion   string    `json:"gateway_version"`
	BusAReady        bool      `json:"bus_a_ready"`
	BusBReady        bool      `json:"bus_b_ready"`
	Link             LinkState `json:"link"`
	ConnectAttempts  uint64    `json:"connect_attempts"`
	Reconnects       uint64    `json:"reconnects"`
	LastMessage      time.Time `json:"last_message"`
	LastError        string    `json:"last_error"`
}

// InputState records user input seen on the bus.
type InputState struct {
	ButtonPresses uint64 `json:"button_presses"`
	TouchEvents   uint64 `json:"touch_events"`
	LastButton    string `json:"last_button"`
	LastTouchX    int    `json:"last_touch_x"`
	LastTouchY    int    `json:"last_touch_y"`

	// Debug frames are kept as hex strings for display.
	HybridDebug string `json:"hybrid_debug"`
	EnergyDebug string `json:"energy_debug"`
}

// DisplayState holds display preferences.
type DisplayState struct {
	PowerChartTimeBase int `json:"power_chart_time_base"`
}

// Counters are the fault counters reported by the engine components.
type Counters struct {
	DecodeErrors    uint64 `json:"decode_errors"`
	OutOfSpec       uint64 `json:"out_of_spec"`
	UnknownMessages uint64 `json:"unknown_messages"`
	DroppedInbound  uint64 `json:"dropped_inbound"`
	DroppedOutbound uint64 `json:"dropped_outbound"`
	SendFailures    uint64 `json:"send_failures"`
	CascadeFaults   uint64 `json:"cascade_faults"`
	RuleErrors      uint64 `json:"rule_errors"`
}

// DiagnosticsState exposes fault counters to the UI.
type DiagnosticsState struct {
	Counters

	// Clamps counts reducer clamps. Maintained by the Store.
	Clamps uint64 `json:"clamps"`
}

// AppState is one complete snapshot of the vehicle state.
//
// AppState holds no maps, slices or pointers, so a copy never shares
// mutable memory with the original.
type AppState struct {
	Version     uint64           `json:"version"`
	Audio       AudioState       `json:"audio"`
	Climate     ClimateState     `json:"climate"`
	Vehicle     VehicleState     `json:"vehicle"`
	Energy      EnergyState      `json:"energy"`
	Lights      LightsState      `json:"lights"`
	Sensors     SensorsState     `json:"sensors"`
	Satellites  SatellitesState  `json:"satellites"`
	Connection  ConnectionState  `json:"connection"`
	Input       InputState       `json:"input"`
	Display     DisplayState     `json:"display"`
	Diagnostics DiagnosticsState `json:"diagnostics"`
}

// Default returns the start-up state.
//
//nolint:mnd // default values
func Default() AppState {
	return AppState{
		Audio: AudioState{
			Volume: 25,
			Source: "radio",
		},
		Climate: ClimateState{
			TargetTemp: 22,
			AC:         true,
			Auto:       true,
		},
		Vehicle: VehicleState{
			Park:            true,
			Gear:            GearPark,
			ActiveFuel:      FuelOff,
			ConsumptionUnit: UnitLitresPerHour,
		},
		Energy: EnergyState{
			SOC: 0.6,
		},
		Lights: LightsState{
			DRLMode: DRLAuto,
		},
		Sensors: SensorsState{
			IsDaytime: true,
		},
		Satellites: SatellitesState{
			VFD: VFDState{
				Gear:       GearPark,
				ActiveFuel: FuelOff,
				SOC:        0.6,
				TimeBase:   60,
				Brightness: 100,
			},
		},
		Connection: ConnectionState{
			Link: LinkDisconnected,
		},
		Display: DisplayState{
			PowerChartTimeBase: 60,
		},
	}
}

// Slice returns the named part of the state for serialisation. Only single
// slices are accepted.
func (s AppState) Slice(slice Slices) (any, error) {
	switch slice {
	case SliceAudio:
		return s.Audio, nil
	case SliceClimate:
		return s.Climate, nil
	case SliceVehicle:
		return s.Vehicle, nil
	case SliceEnergy:
		return s.Energy, nil
	case SliceLights:
		return s.Lights, nil
	case SliceSensors:
		return s.Sensors, nil
	case SliceSatellites:
		return s.Satellites, nil
	case SliceConnection:
		return s.Connection, nil
	case SliceInput:
		return s.Input, nil
	case SliceDisplay:
		return s.Display, nil
	case SliceDiagnostics:
		return s.Diagnostics, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSlice, slice)
	}
}
