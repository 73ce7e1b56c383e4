package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// pipePort is an in-memory serial port. Lines written with feed are
// returned by Read; bytes passed to Write are recorded.
type pipePort struct {
	r    *io.PipeReader
	w    *io.PipeWriter
	gate chan struct{} // when non-nil, Write blocks until it is closed

	mu      sync.Mutex
	written bytes.Buffer
	closed  atomic.Bool
}

func newPipePort() *pipePort {
	r, w := io.Pipe()
	return &pipePort{r: r, w: w}
}

func (p *pipePort) Read(b []byte) (int, error) { return p.r.Read(b) }

func (p *pipePort) Write(b []byte) (int, error) {
	if p.gate != nil {
		<-p.gate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.written.Write(b)
}

func (p *pipePort) Close() error {
	p.closed.Store(true)
	return p.r.Close()
}

func (p *pipePort) feed(t *testing.T, line string) {
	t.Helper()
	if _, err := p.w.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("feed: %v", err)
	}
}

func (p *pipePort) unplug() {
	_ = p.w.CloseWithError(errors.New("device unplugged"))
}

func (p *pipePort) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := strings.TrimSuffix(p.written.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func testLinkConfig() LinkConfig {
	return LinkConfig{
		Port:           "/dev/test",
		AutoReconnect:  true,
		ReconnectDelay: 5 * time.Millisecond,
	}
}

func startLink(t *testing.T, cfg LinkConfig, open Opener) *Link {
	t.Helper()
	l := NewLink(cfg, open, nil)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Stop() })
	return l
}

func TestLinkReceivesEnvelopes(t *testing.T) {
	port := newPipePort()
	l := startLink(t, testLinkConfig(), func(LinkConfig) (io.ReadWriteCloser, error) { return port, nil })

	if !l.IsConnected() {
		t.Fatal("IsConnected() = false after Start")
	}

	port.feed(t, `{"id":2,"ts":1000,"d":{"m":"190"}}`)
	port.feed(t, `garbage`)
	port.feed(t, `{"id":1,"d":{"i":"3CB","d":[1]}}`)

	var got []RawMessage
	waitFor(t, "two messages", func() bool {
		if msg, ok := l.Poll(); ok {
			got = append(got, msg)
		}
		return len(got) == 2
	})

	if got[0].Channel != ChannelAVC || got[1].Channel != ChannelCAN {
		t.Errorf("channels = %v, %v", got[0].Channel, got[1].Channel)
	}
	if !got[0].Timestamp.Equal(time.UnixMilli(1000)) {
		t.Errorf("Timestamp = %v, want gateway time", got[0].Timestamp)
	}
	if got[1].Timestamp.IsZero() {
		t.Error("missing gateway timestamp should be replaced by receive time")
	}
	if st := l.Status(); st.ParseErrors != 1 || st.RxMessages != 2 {
		t.Errorf("Status() = %+v, want 1 parse error and 2 messages", st)
	}
}

func TestLinkSendWritesLine(t *testing.T) {
	port := newPipePort()
	l := startLink(t, testLinkConfig(), func(LinkConfig) (io.ReadWriteCloser, error) { return port, nil })

	err := l.Send(OutgoingCommand{Channel: ChannelVFD, Command: "S", Payload: map[string]string{"gear": "D"}})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	waitFor(t, "written line", func() bool { return len(port.lines()) == 1 })
	if got, want := port.lines()[0], `{"id":110,"cmd":"S","d":{"gear":"D"}}`; got != want {
		t.Errorf("written = %s, want %s", got, want)
	}
	waitFor(t, "tx counter", func() bool { return l.Status().TxCommands == 1 })
}

func TestLinkReconnectsAfterFailures(t *testing.T) {
	const failures = 3
	port := newPipePort()

	var (
		l     *Link
		calls atomic.Int32
		seen  atomic.Bool // IsConnected observed true while failing
	)
	open := func(LinkConfig) (io.ReadWriteCloser, error) {
		if l.IsConnected() {
			seen.Store(true)
		}
		if calls.Add(1) <= failures {
			return nil, errors.New("no such device")
		}
		return port, nil
	}
	l = NewLink(testLinkConfig(), open, nil)
	t.Cleanup(func() { _ = l.Stop() })

	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if l.IsConnected() {
		t.Fatal("IsConnected() = true after failed first open")
	}

	waitFor(t, "connection", l.IsConnected)

	if seen.Load() {
		t.Error("IsConnected() reported true during failed attempts")
	}
	st := l.Status()
	if st.Attempts != failures+1 {
		t.Errorf("Attempts = %d, want %d", st.Attempts, failures+1)
	}
	if st.Reconnects != 0 {
		t.Errorf("Reconnects = %d, want 0 before any loss", st.Reconnects)
	}
	if st.LastError != "no such device" {
		t.Errorf("LastError = %q", st.LastError)
	}
}

func TestLinkReconnectsAfterLoss(t *testing.T) {
	first, second := newPipePort(), newPipePort()
	release := make(chan struct{})

	var calls atomic.Int32
	open := func(LinkConfig) (io.ReadWriteCloser, error) {
		if calls.Add(1) == 1 {
			return first, nil
		}
		<-release
		return second, nil
	}
	l := startLink(t, testLinkConfig(), open)

	first.unplug()
	waitFor(t, "disconnect", func() bool { return !l.IsConnected() })

	if err := l.Send(OutgoingCommand{Channel: ChannelVFD, Command: "C"}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() while down error = %v, want ErrNotConnected", err)
	}
	if !first.closed.Load() {
		t.Error("lost port was not closed")
	}

	close(release)
	waitFor(t, "reconnect", l.IsConnected)

	if st := l.Status(); st.Reconnects != 1 || st.Attempts != 2 {
		t.Errorf("Status() = %+v, want 1 reconnect after 2 attempts", st)
	}

	second.feed(t, `{"id":0,"d":{"ready":true}}`)
	waitFor(t, "message on new port", func() bool {
		_, ok := l.Poll()
		return ok
	})
}

// recordingLogger keeps info messages.
type recordingLogger struct {
	noopLogger
	mu    sync.Mutex
	infos []string
}

func (r *recordingLogger) Info(msg string, _ ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.infos = append(r.infos, msg)
}

func (r *recordingLogger) count(msg string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.infos {
		if m == msg {
			n++
		}
	}
	return n
}

func TestLinkListsPortsOnFirstFailure(t *testing.T) {
	var lists atomic.Int32
	orig := listPorts
	listPorts = func() ([]string, error) {
		lists.Add(1)
		return []string{"/dev/ttyACM1"}, nil
	}
	t.Cleanup(func() { listPorts = orig })

	port := newPipePort()
	var calls atomic.Int32
	open := func(LinkConfig) (io.ReadWriteCloser, error) {
		if calls.Add(1) <= 3 {
			return nil, errors.New("no such device")
		}
		return port, nil
	}
	logger := &recordingLogger{}
	l := NewLink(testLinkConfig(), open, logger)
	t.Cleanup(func() { _ = l.Stop() })
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "connection", l.IsConnected)

	if n := lists.Load(); n != 1 {
		t.Errorf("ports listed %d times, want 1", n)
	}
	if n := logger.count("serial ports present"); n != 1 {
		t.Errorf("port list logged %d times, want 1", n)
	}
}

func TestLinkStartWithoutAutoReconnect(t *testing.T) {
	cfg := testLinkConfig()
	cfg.AutoReconnect = false
	l := NewLink(cfg, func(LinkConfig) (io.ReadWriteCloser, error) {
		return nil, errors.New("permission denied")
	}, nil)

	err := l.Start(context.Background())
	if !errors.Is(err, ErrOpenFailed) {
		t.Fatalf("Start() error = %v, want ErrOpenFailed", err)
	}
	if l.State() != StateDisconnected {
		t.Errorf("State() = %v, want disconnected", l.State())
	}
}

func TestLinkOutboundQueueFull(t *testing.T) {
	port := newPipePort()
	port.gate = make(chan struct{})
	defer close(port.gate)

	cfg := testLinkConfig()
	cfg.OutboundQueue = 1
	l := startLink(t, cfg, func(LinkConfig) (io.ReadWriteCloser, error) { return port, nil })

	cmd := OutgoingCommand{Channel: ChannelVFD, Command: "E"}
	var full bool
	for i := 0; i < 10; i++ {
		if err := l.Send(cmd); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	if !full {
		t.Fatal("Send() never reported ErrQueueFull")
	}
	if l.Status().TxDropped == 0 {
		t.Error("TxDropped = 0 after a full queue")
	}
}

func TestLinkInboundQueueFull(t *testing.T) {
	port := newPipePort()
	cfg := testLinkConfig()
	cfg.InboundQueue = 1
	l := startLink(t, cfg, func(LinkConfig) (io.ReadWriteCloser, error) { return port, nil })

	for i := 0; i < 3; i++ {
		port.feed(t, `{"id":1,"d":{}}`)
	}
	waitFor(t, "dropped inbound", func() bool { return l.Status().RxDropped == 2 })

	if _, ok := l.Poll(); !ok {
		t.Error("first message should be queued")
	}
	if _, ok := l.Poll(); ok {
		t.Error("queue should hold one message")
	}
}

func TestLinkStop(t *testing.T) {
	port := newPipePort()
	l := NewLink(testLinkConfig(), func(LinkConfig) (io.ReadWriteCloser, error) { return port, nil }, nil)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	if l.State() != StateStopped {
		t.Errorf("State() = %v, want stopped", l.State())
	}
	if !port.closed.Load() {
		t.Error("port not closed by Stop")
	}
	if err := l.Send(OutgoingCommand{Channel: ChannelVFD}); !errors.Is(err, ErrStopped) {
		t.Errorf("Send() after Stop error = %v, want ErrStopped", err)
	}
	if err := l.Start(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}
}

func TestLinkStopsOnContextCancel(t *testing.T) {
	port := newPipePort()
	l := NewLink(testLinkConfig(), func(LinkConfig) (io.ReadWriteCloser, error) { return port, nil }, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	waitFor(t, "stopped state", func() bool { return l.State() == StateStopped })
}

func TestConnStateString(t *testing.T) {
	tests := map[ConnState]string{
		StateDisconnected: "disconnected",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateStopped:      "stopped",
		ConnState(9):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("ConnState(%d).String() = %q, want %q", s, got, want)
		}
	}
}
