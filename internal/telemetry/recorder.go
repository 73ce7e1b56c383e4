package telemetry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
)

// DefaultRecordInterval is the minimum spacing between points of one
// measurement.
const DefaultRecordInterval = time.Second

// PointWriter is the part of the InfluxDB client the recorder uses.
type PointWriter interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time)
}

const recorded = state.SliceEnergy | state.SliceVehicle

// InfluxRecorder writes the energy and vehicle slices as time series.
//
// Changes are sampled: at most one point per measurement per interval,
// carrying the latest values.
type InfluxRecorder struct {
	store    Store
	writer   PointWriter
	interval time.Duration

	dirty  atomic.Uint32
	points atomic.Uint64

	mu          sync.Mutex
	last        time.Time
	unsubscribe func()
}

// NewInfluxRecorder creates a recorder. A non-positive interval selects
// DefaultRecordInterval.
func NewInfluxRecorder(store Store, writer PointWriter, interval time.Duration) *InfluxRecorder {
	if interval <= 0 {
		interval = DefaultRecordInterval
	}
	return &InfluxRecorder{store: store, writer: writer, interval: interval}
}

// Start subscribes to the recorded slices.
func (r *InfluxRecorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		return
	}
	r.unsubscribe = r.store.Subscribe(recorded, func(c state.Change) {
		changed := uint32(c.Slices & recorded)
		for {
			old := r.dirty.Load()
			if r.dirty.CompareAndSwap(old, old|changed) {
				return
			}
		}
	})
}

// Stop unsubscribes.
func (r *InfluxRecorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

// Record writes points for slices changed since the last write, if the
// interval has elapsed.
//
// Returns:
//   - int: Number of points written
func (r *InfluxRecorder) Record(now time.Time) int {
	r.mu.Lock()
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		r.mu.Unlock()
		return 0
	}
	dirty := state.Slices(r.dirty.Swap(0))
	if dirty == state.SliceNone {
		r.mu.Unlock()
		return 0
	}
	r.last = now
	r.mu.Unlock()

	snapshot := r.store.State()
	written := 0
	if dirty.Has(state.SliceEnergy) {
		r.writer.WritePointWithTime("energy", nil, energyFields(snapshot.Energy), now)
		written++
	}
	if dirty.Has(state.SliceVehicle) {
		r.writer.WritePointWithTime("vehicle", map[string]string{"gear": string(snapshot.Vehicle.Gear)},
			vehicleFields(snapshot.Vehicle), now)
		written++
	}
	r.points.Add(uint64(written)) //nolint:gosec // written is non-negative
	return written
}

// Points returns the number of points written.
func (r *InfluxRecorder) Points() uint64 {
	return r.points.Load()
}

func energyFields(e state.EnergyState) map[string]any {
	return map[string]any{
		"soc":              e.SOC,
		"battery_voltage":  e.BatteryVoltage,
		"battery_current":  e.BatteryCurrent,
		"power_kw":         e.PowerKW(),
		"battery_temp":     e.BatteryTemp,
		"battery_temp_max": e.BatteryTempMax,
		"delta_soc":        e.DeltaSOC,
		"charging":         e.Charging,
		"regenerating":     e.Regenerating,
		"fault_code":       int64(e.FaultCode),
	}
}

func vehicleFields(v state.VehicleState) map[string]any {
	return map[string]any{
		"ready":         v.Ready,
		"ice_running":   v.IceRunning,
		"speed_kph":     v.SpeedKph,
		"rpm":           v.RPM,
		"throttle":      v.Throttle,
		"brake":         v.Brake,
		"fuel_level":    v.FuelLevel,
		"lpg_level":     v.LPGLevel,
		"fuel_flow_lph": v.FuelFlowLph,
		"active_fuel":   string(v.ActiveFuel),
		"coolant_temp":  v.CoolantTemp,
	}
}
