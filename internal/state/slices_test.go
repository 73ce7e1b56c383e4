package state

import (
	"errors"
	"reflect"
	"testing"
)

func TestSlicesSetOperations(t *testing.T) {
	s := SliceAudio | SliceClimate

	if !s.Has(SliceAudio) || s.Has(SliceVehicle) {
		t.Errorf("Has() wrong for %s", s)
	}
	if !s.Intersects(SliceClimate|SliceEnergy) || s.Intersects(SliceEnergy) {
		t.Errorf("Intersects() wrong for %s", s)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if got := s.Each(); !reflect.DeepEqual(got, []Slices{SliceAudio, SliceClimate}) {
		t.Errorf("Each() = %v", got)
	}
	if SliceAll.Len() != 11 {
		t.Errorf("SliceAll.Len() = %d, want 11", SliceAll.Len())
	}
}

func TestSlicesString(t *testing.T) {
	tests := []struct {
		s    Slices
		want string
	}{
		{SliceNone, "none"},
		{SliceAll, "all"},
		{SliceEnergy, "energy"},
		{SliceVehicle | SliceDiagnostics, "vehicle|diagnostics"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseSlice(t *testing.T) {
	for _, name := range SliceAll.Names() {
		s, err := ParseSlice(name)
		if err != nil {
			t.Fatalf("ParseSlice(%q) error: %v", name, err)
		}
		if s.String() != name {
			t.Errorf("ParseSlice(%q) = %s", name, s)
		}
	}

	if s, err := ParseSlice(" ALL "); err != nil || s != SliceAll {
		t.Errorf("ParseSlice(all) = %s, %v", s, err)
	}
	if _, err := ParseSlice("engine"); !errors.Is(err, ErrUnknownSlice) {
		t.Errorf("ParseSlice(engine) error = %v, want ErrUnknownSlice", err)
	}
}

func TestAppStateSlice(t *testing.T) {
	st := Default()
	for _, slice := range SliceAll.Each() {
		if _, err := st.Slice(slice); err != nil {
			t.Errorf("Slice(%s) error: %v", slice, err)
		}
	}
	if _, err := st.Slice(SliceAudio | SliceClimate); !errors.Is(err, ErrUnknownSlice) {
		t.Errorf("Slice(multi) error = %v, want ErrUnknownSlice", err)
	}
}
