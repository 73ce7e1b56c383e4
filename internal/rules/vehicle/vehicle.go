package vehicle

import (
	"math"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/rules"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// Consumption thresholds.
const (
	minFlowLph         = 0.05
	minSpeedKph        = 5.0
	consumptionEpsilon = 0.01
)

// VFD normalisation full-scale values.
const (
	vfdPowerKW  = 30.0
	vfdFlowLph  = 8.0
	vfdSpeedKph = 120.0
)

// All returns every vehicle rule in registration order.
func All() []rules.Rule {
	return []rules.Rule{
		ParkSpeed(),
		ActiveFuel(),
		FuelConsumption(),
		DRL(),
		VFDProjection(),
	}
}

// ParkSpeed forces the speed to zero while the gear is P.
func ParkSpeed() rules.Rule {
	type inputs struct {
		gear  state.Gear
		speed float64
	}
	return rules.Derived("park_speed", state.SliceVehicle,
		func(s state.AppState) inputs { return inputs{s.Vehicle.Gear, s.Vehicle.SpeedKph} },
		func(next state.AppState) []state.Action {
			if next.Vehicle.Gear != state.GearPark || next.Vehicle.SpeedKph == 0 {
				return nil
			}
			return []state.Action{state.SetMeasurement{
				Measurement: state.MeasSpeed,
				Value:       0,
				Origin:      state.OriginRule,
			}}
		},
	)
}

// ActiveFuel tracks which fuel the engine burns: OFF while the ICE is
// stopped, LPG when the LPG controller reports gas mode, petrol otherwise.
func ActiveFuel() rules.Rule {
	type inputs struct {
		ice bool
		lpg bool
	}
	return rules.Derived("active_fuel", state.SliceVehicle,
		func(s state.AppState) inputs { return inputs{s.Vehicle.IceRunning, s.Vehicle.LPGSignalled} },
		func(next state.AppState) []state.Action {
			want := state.FuelOff
			switch {
			case next.Vehicle.IceRunning && next.Vehicle.LPGSignalled:
				want = state.FuelLPG
			case next.Vehicle.IceRunning:
				want = state.FuelPetrol
			}
			if next.Vehicle.ActiveFuel == want {
				return nil
			}
			return []state.Action{state.SetActiveFuel{Fuel: want, Origin: state.OriginRule}}
		},
	)
}

// FuelConsumption computes the instant consumption. Above walking speed
// with the engine running it is L/100km (capped at 99.9), otherwise the
// raw flow in L/h.
func FuelConsumption() rules.Rule {
	type inputs struct {
		flow  float64
		speed float64
		ice   bool
	}
	return rules.Derived("fuel_consumption", state.SliceVehicle,
		func(s state.AppState) inputs {
			return inputs{s.Vehicle.FuelFlowLph, s.Vehicle.SpeedKph, s.Vehicle.IceRunning}
		},
		func(next state.AppState) []state.Action {
			v := next.Vehicle
			value, unit := v.FuelFlowLph, state.UnitLitresPerHour
			if v.FuelFlowLph > minFlowLph && v.IceRunning && v.SpeedKph > minSpeedKph {
				value = math.Min(v.FuelFlowLph/v.SpeedKph*100, state.ConsumptionMax) //nolint:mnd // per 100 km
				unit = state.UnitLitresPer100Km
			}
			if unit == v.ConsumptionUnit && math.Abs(value-v.InstantConsumption) <= consumptionEpsilon {
				return nil
			}
			return []state.Action{state.SetConsumption{Value: value, Unit: unit, Origin: state.OriginRule}}
		},
	)
}

// DRL switches the daytime running lights. OFF keeps them off, ON keeps
// them on unless parked, AUTO turns them on in daylight without rain while
// not parked.
func DRL() rules.Rule {
	type inputs struct {
		mode    state.DRLMode
		daytime bool
		raining bool
		park    bool
	}
	return rules.Derived("drl", state.SliceLights|state.SliceSensors|state.SliceVehicle,
		func(s state.AppState) inputs {
			return inputs{s.Lights.DRLMode, s.Sensors.IsDaytime, s.Sensors.IsRaining, s.Vehicle.Park}
		},
		func(next state.AppState) []state.Action {
			want := false
			switch next.Lights.DRLMode {
			case state.DRLOn:
				want = !next.Vehicle.Park
			case state.DRLAuto:
				want = next.Sensors.IsDaytime && !next.Sensors.IsRaining && !next.Vehicle.Park
			}
			if next.Lights.DRLActive == want {
				return nil
			}
			return []state.Action{state.SetDRLActive{Active: want, Origin: state.OriginRule}}
		},
	)
}

// VFDProjection derives the VFD satellite view from vehicle, energy and
// display state.
func VFDProjection() rules.Rule {
	return rules.Derived("vfd_projection", state.SliceVehicle|state.SliceEnergy|state.SliceDisplay,
		projectVFD,
		func(next state.AppState) []state.Action {
			want := projectVFD(next)
			if want == next.Satellites.VFD {
				return nil
			}
			return []state.Action{state.SetVFD{VFD: want, Origin: state.OriginRule}}
		},
	)
}

// projectVFD computes the VFD view. Brightness is a user setting and is
// carried over unchanged.
func projectVFD(s state.AppState) state.VFDState {
	v, e := s.Vehicle, s.Energy
	return state.VFDState{
		MGPower:     clamp(e.PowerKW()/vfdPowerKW, -1, 1),
		FuelFlow:    clamp(v.FuelFlowLph/vfdFlowLph, 0, 1),
		Brake:       clamp(v.Brake/state.BrakeMax, 0, 1),
		Speed:       clamp(v.SpeedKph/vfdSpeedKph, 0, 1),
		SOC:         clamp(e.SOC, 0, 1),
		PetrolLevel: v.FuelLevel,
		LPGLevel:    v.LPGLevel,
		ICE:         v.IceRunning,
		Gear:        v.Gear,
		ActiveFuel:  v.ActiveFuel,
		Ready:       v.Ready,
		TimeBase:    s.Display.PowerChartTimeBase,
		Brightness:  s.Satellites.VFD.Brightness,
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
