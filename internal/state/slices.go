package state

import (
	"fmt"
	"math/bits"
	"strings"
)

// Slices is a set of AppState slices.
type Slices uint32

// Individual slices.
const (
	SliceAudio Slices = 1 << iota
	SliceClimate
	SliceVehicle
	SliceEnergy
	SliceLights
	SliceSensors
	SliceSatellites
	SliceConnection
	SliceInput
	SliceDisplay
	SliceDiagnostics

	// SliceNone is the empty set.
	SliceNone Slices = 0

	// SliceAll contains every slice.
	SliceAll = SliceAudio | SliceClimate | SliceVehicle | SliceEnergy | SliceLights |
		SliceSensors | SliceSatellites | SliceConnection | SliceInput | SliceDisplay |
		SliceDiagnostics
)

// sliceOrder lists slices in declaration order with their names.
var sliceOrder = []struct {
	slice Slices
	name  string
}{
	{SliceAudio, "audio"},
	{SliceClimate, "climate"},
	{SliceVehicle, "vehicle"},
	{SliceEnergy, "energy"},
	{SliceLights, "lights"},
	{SliceSensors, "sensors"},
	{SliceSatellites, "satellites"},
	{SliceConnection, "connection"},
	{SliceInput, "input"},
	{SliceDisplay, "display"},
	{SliceDiagnostics, "diagnostics"},
}

// Has reports whether every slice in other is in s.
func (s Slices) Has(other Slices) bool {
	return s&other == other
}

// Intersects reports whether s and other share at least one slice.
func (s Slices) Intersects(other Slices) bool {
	return s&other != 0
}

// Len returns the number of slices in the set.
func (s Slices) Len() int {
	return bits.OnesCount32(uint32(s & SliceAll))
}

// Each returns the individual slices of s in declaration order.
func (s Slices) Each() []Slices {
	out := make([]Slices, 0, s.Len())
	for _, e := range sliceOrder {
		if s&e.slice != 0 {
			out = append(out, e.slice)
		}
	}
	return out
}

// Names returns the names of the slices in s in declaration order.
func (s Slices) Names() []string {
	out := make([]string, 0, s.Len())
	for _, e := range sliceOrder {
		if s&e.slice != 0 {
			out = append(out, e.name)
		}
	}
	return out
}

// String returns the names joined by "|", or "none".
func (s Slices) String() string {
	if s == SliceNone {
		return "none"
	}
	if s == SliceAll {
		return "all"
	}
	return strings.Join(s.Names(), "|")
}

// ParseSlice parses a single slice name, or "all".
func ParseSlice(name string) (Slices, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "all" {
		return SliceAll, nil
	}
	for _, e := range sliceOrder {
		if e.name == name {
			return e.slice, nil
		}
	}
	return SliceNone, fmt.Errorf("%w: %q", ErrUnknownSlice, name)
}
