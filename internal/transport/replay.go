package transport

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// ReplayConfig configures playback of a recorded capture.
type ReplayConfig struct {
	// Path is an NDJSON file in gateway envelope format.
	Path string

	// Speed scales playback: 1.0 is real time, 2.0 twice as fast.
	// Zero or negative plays every message as fast as Poll is called.
	Speed float64

	// Loop restarts from the first message at end of file.
	Loop bool

	// Realtime honours the recorded timestamps. When false every
	// message is available immediately.
	Realtime bool
}

type replayEntry struct {
	msg    RawMessage
	offset time.Duration
}

// Replay is an InputPort that plays back a recorded capture.
//
// Offsets are measured from the first timestamped message. Lines without a
// timestamp inherit the previous offset.
//
// Thread Safety: All methods are safe for concurrent use.
type Replay struct {
	cfg    ReplayConfig
	logger Logger
	now    func() time.Time

	mu          sync.Mutex
	entries     []replayEntry
	pos         int
	started     time.Time
	pausedAt    time.Time
	paused      bool
	running     bool
	stopped     bool
	parseErrors uint64
	loops       uint64
}

// NewReplay creates a replay port. A nil logger discards output.
func NewReplay(cfg ReplayConfig, logger Logger) *Replay {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Replay{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Start loads the capture and starts the playback clock.
func (r *Replay) Start(_ context.Context) error {
	entries, bad, err := loadCapture(r.cfg.Path)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return ErrStopped
	}
	if r.running {
		return ErrAlreadyStarted
	}
	r.entries = entries
	r.parseErrors = bad
	r.pos = 0
	r.started = r.now()
	r.running = true

	r.logger.Info("replay started",
		"path", r.cfg.Path,
		"messages", len(entries),
		"invalid_lines", bad,
		"speed", r.cfg.Speed,
		"loop", r.cfg.Loop,
	)
	return nil
}

// Stop ends playback.
func (r *Replay) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.stopped = true
	return nil
}

// Poll returns the next message whose playback time has arrived.
func (r *Replay) Poll() (RawMessage, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running || r.paused || len(r.entries) == 0 {
		return RawMessage{}, false
	}

	if r.pos >= len(r.entries) {
		if !r.cfg.Loop {
			return RawMessage{}, false
		}
		r.pos = 0
		r.started = r.now()
		r.loops++
	}

	entry := r.entries[r.pos]
	if r.cfg.Realtime && r.cfg.Speed > 0 {
		elapsed := time.Duration(float64(r.now().Sub(r.started)) * r.cfg.Speed)
		if elapsed < entry.offset {
			return RawMessage{}, false
		}
	}
	r.pos++
	return entry.msg, true
}

// IsConnected reports whether playback is running and has messages left.
func (r *Replay) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running && (r.cfg.Loop || r.pos < len(r.entries))
}

// Pause freezes the playback clock.
func (r *Replay) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paused || !r.running {
		return
	}
	r.paused = true
	r.pausedAt = r.now()
}

// Resume continues after Pause without skipping the paused interval.
func (r *Replay) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.started = r.started.Add(r.now().Sub(r.pausedAt))
	r.paused = false
}

// Progress returns the playback position and total message count.
func (r *Replay) Progress() (pos, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pos, len(r.entries)
}

// Status reports replay progress in link terms.
func (r *Replay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		State:       StateDisconnected,
		ParseErrors: r.parseErrors,
		RxMessages:  uint64(r.pos) + r.loops*uint64(len(r.entries)), //nolint:gosec // counts are non-negative
	}
	switch {
	case r.stopped:
		st.State = StateStopped
	case r.running:
		st.State = StateConnected
	}
	return st
}

func loadCapture(path string) ([]replayEntry, uint64, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from operator config
	if err != nil {
		return nil, 0, fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	var (
		entries []replayEntry
		bad     uint64
		first   time.Time
		offset  time.Duration
	)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, readBufferSize), maxLineLength)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := ParseEnvelope(line)
		if err != nil {
			bad++
			continue
		}
		if !msg.Timestamp.IsZero() {
			if first.IsZero() {
				first = msg.Timestamp
			}
			offset = msg.Timestamp.Sub(first)
		}
		// Payload aliases the scanner buffer.
		msg.Payload = append([]byte(nil), msg.Payload...)
		entries = append(entries, replayEntry{msg: msg, offset: offset})
	}
	if err := scanner.Err(); err != nil {
		return nil, bad, fmt.Errorf("reading capture: %w", err)
	}
	return entries, bad, nil
}
