package ingress

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/protocol/can"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/transport"
)

// Plausibility windows for broadcast readings. The battery ECU reports
// nonsense SOC until it is fully awake, and coolant reads low while the
// engine ECU initialises.
const (
	socAcceptMin     = 10.0
	socAcceptMax     = 95.0
	coolantAcceptMin = 40.0
	coolantAcceptMax = 120.0
	ambientAcceptMin = -50.0
	ambientAcceptMax = 80.0

	// Injector pulse counts at or below this are idle noise.
	injectorNoiseFloor = 50.0
	// Litres per hour per injector count.
	injectorLitresPerHour = 0.008
	fuelFlowMax           = 30.0
)

// measurementSignals map signals straight onto measurements.
var measurementSignals = map[can.Name]state.Measurement{
	can.SignalBatteryCurrent:  state.MeasBatteryCurrent,
	can.SignalBatteryVoltage:  state.MeasBatteryVoltage,
	can.SignalBatteryTemp:     state.MeasBatteryTemp,
	can.SignalBatteryTempMax:  state.MeasBatteryTempMax,
	can.SignalThrottle:        state.MeasThrottle,
	can.SignalBrake:           state.MeasBrake,
	can.SignalFuelLevel:       state.MeasFuelLevel,
	can.SignalRPM:             state.MeasRPM,
	can.SignalSpeed:           state.MeasSpeed,
	can.SignalDeltaSOC:        state.MeasDeltaSOC,
	can.SignalMG2InverterTemp: state.MeasInverterTemp,
}

// gearSignal maps SignalGear values to gear positions.
var gearSignal = map[int]state.Gear{
	can.GearPark:    state.GearPark,
	can.GearReverse: state.GearReverse,
	can.GearNeutral: state.GearNeutral,
	can.GearDrive:   state.GearDrive,
	can.GearBrake:   state.GearBrake,
}

func (c *Controller) handleCAN(payload json.RawMessage) ([]state.Action, error) {
	f, err := can.ParseFrame(payload)
	if err != nil {
		return nil, err
	}

	if can.IsDiagnosticResponse(f.ID) {
		return c.handleDiagnostic(f)
	}

	signals, err := can.Decode(f)
	if errors.Is(err, can.ErrUnknownID) {
		c.unknown.Add(1)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.signalActions(signals), nil
}

// handleDiagnostic feeds a response frame to the assembler and decodes the
// payload once it is complete.
func (c *Controller) handleDiagnostic(f can.Frame) ([]state.Action, error) {
	if can.IsFirstFrame(f) {
		c.sendFlowControl(f.ID)
	}

	payload, complete, err := c.assembler.Feed(f, c.now())
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, nil
	}

	pid, signals, err := can.DecodeResponse(f.ID, payload)
	if err != nil {
		return nil, fmt.Errorf("diagnostic response from %03X: %w", f.ID, err)
	}
	c.diagnostics.Add(1)
	c.logger.Debug("diagnostic response", "pid", pid.String(), "signals", len(signals))
	return c.signalActions(signals), nil
}

func (c *Controller) sendFlowControl(responseID uint32) {
	if c.flow == nil {
		return
	}
	err := c.flow.Send(transport.OutgoingCommand{
		Channel: transport.ChannelCAN,
		Command: transport.CommandSend,
		Payload: can.FlowControl(responseID),
	})
	if err != nil {
		c.logger.Debug("flow control not sent", "response_id", fmt.Sprintf("%03X", responseID), "error", err)
		return
	}
	c.flowControls.Add(1)
}

// signalActions converts decoded signals to hardware-origin actions.
// Out-of-spec signals are counted and skipped.
func (c *Controller) signalActions(signals []can.Signal) []state.Action {
	var actions []state.Action
	for _, sig := range signals {
		if sig.OutOfSpec {
			c.outOfSpec.Add(1)
			c.logger.Debug("out-of-spec signal",
				"signal", string(sig.Name),
				"value", sig.Value,
				"min", sig.Min,
				"max", sig.Max,
			)
			continue
		}
		if a, ok := c.signalAction(sig); ok {
			actions = append(actions, a)
		}
	}
	return actions
}

func (c *Controller) signalAction(sig can.Signal) (state.Action, bool) {
	if m, ok := measurementSignals[sig.Name]; ok {
		return state.SetMeasurement{Measurement: m, Value: sig.Value, Origin: state.OriginHardware}, true
	}

	switch sig.Name {
	case can.SignalSOC:
		if sig.Value < socAcceptMin || sig.Value > socAcceptMax {
			c.filtered.Add(1)
			return nil, false
		}
		return state.SetSOC{Fraction: sig.Value / 100, Origin: state.OriginHardware}, true //nolint:mnd // percent

	case can.SignalDiagSOC:
		return state.SetSOC{Fraction: sig.Value / 100, Origin: state.OriginHardware}, true //nolint:mnd // percent

	case can.SignalCoolantTemp, can.SignalDiagCoolantTemp:
		if sig.Value < coolantAcceptMin || sig.Value > coolantAcceptMax {
			c.filtered.Add(1)
			return nil, false
		}
		return state.SetMeasurement{Measurement: state.MeasCoolantTemp, Value: sig.Value, Origin: state.OriginHardware}, true

	case can.SignalAmbientTemp:
		if sig.Value < ambientAcceptMin || sig.Value > ambientAcceptMax {
			c.filtered.Add(1)
			return nil, false
		}
		return state.SetOutsideTemp{Celsius: sig.Value, Origin: state.OriginHardware}, true

	case can.SignalInjectorTime:
		return state.SetMeasurement{
			Measurement: state.MeasFuelFlow,
			Value:       fuelFlow(sig.Value),
			Origin:      state.OriginHardware,
		}, true

	case can.SignalFlowFlags:
		return state.SetEnergyFlow{Flags: uint8(sig.Value), Origin: state.OriginHardware}, true

	case can.SignalFaultCode:
		return state.SetFaultCode{Code: uint16(sig.Value), Origin: state.OriginHardware}, true

	case can.SignalGear:
		if g, ok := gearSignal[int(sig.Value)]; ok {
			return state.SetGear{Gear: g, Origin: state.OriginHardware}, true
		}
	}
	// Charge limits, pack temperatures, motor temperatures and the MG1
	// inverter have no state field.
	return nil, false
}

// fuelFlow converts the 0x520 injector count to litres per hour.
func fuelFlow(injector float64) float64 {
	if injector <= injectorNoiseFloor {
		return 0
	}
	return min(injector*injectorLitresPerHour, fuelFlowMax)
}
