package influxdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/config"
)

// fakeWriter captures points in line protocol.
type fakeWriter struct {
	mu      sync.Mutex
	lines   []string
	flushes int
}

func (f *fakeWriter) WritePoint(p *write.Point) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, write.PointToLineProtocol(p, time.Nanosecond))
}

func (f *fakeWriter) Flush() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushes++
}

func (f *fakeWriter) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false}, nil)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestWritePointWithTime(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(config.InfluxDBConfig{}, w, map[string]string{"vehicle": "prius", "session": "s1"})

	ts := time.Unix(1700000000, 0)
	c.WritePointWithTime("energy", map[string]string{"session": "override"}, map[string]any{"soc": 0.5}, ts)

	lines := w.written()
	if len(lines) != 1 {
		t.Fatalf("wrote %d points, want 1", len(lines))
	}
	want := "energy,session=override,vehicle=prius soc=0.5 1700000000000000000"
	if strings.TrimSpace(lines[0]) != want {
		t.Errorf("line = %q, want %q", lines[0], want)
	}
}

func TestWritePoint_SkipsEmptyFields(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(config.InfluxDBConfig{}, w, nil)

	c.WritePoint("vehicle", nil, nil)

	if n := len(w.written()); n != 0 {
		t.Errorf("wrote %d points for empty fields", n)
	}
}

func TestDefaultTagsCopied(t *testing.T) {
	tags := map[string]string{"vehicle": "prius"}
	w := &fakeWriter{}
	c := newClient(config.InfluxDBConfig{}, w, tags)
	tags["vehicle"] = "changed"

	c.WritePoint("vehicle", nil, map[string]any{"rpm": 1000.0})

	if line := w.written()[0]; !strings.Contains(line, "vehicle=prius") {
		t.Errorf("line = %q, default tags aliased caller map", line)
	}
}

func TestClose(t *testing.T) {
	w := &fakeWriter{}
	c := newClient(config.InfluxDBConfig{}, w, nil)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}

	c.WritePoint("energy", nil, map[string]any{"soc": 0.5})
	c.Flush()
	_ = c.Close()

	if len(w.written()) != 0 || w.flushes != 1 {
		t.Error("client wrote or flushed after Close")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHandleWriteErrors(t *testing.T) {
	c := newClient(config.InfluxDBConfig{}, &fakeWriter{}, nil)

	var got []error
	c.SetOnError(func(err error) { got = append(got, err) })

	ch := make(chan error, 2)
	ch <- errors.New("batch rejected")
	ch <- errors.New("timeout")
	close(ch)

	c.handleWriteErrors(ch)

	if len(got) != 2 {
		t.Fatalf("callback got %d errors, want 2", len(got))
	}
	if !errors.Is(got[0], ErrWriteFailed) {
		t.Errorf("callback error = %v, want ErrWriteFailed", got[0])
	}
}
