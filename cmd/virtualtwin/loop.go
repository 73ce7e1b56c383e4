package main

import (
	"context"
	"time"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
)

// ticker is the part of the twin the loop drives.
type ticker interface {
	Update(now time.Time) int
	Stats() twin.Stats
}

// statePublisher mirrors dirty slices to MQTT.
type statePublisher interface {
	Flush() int
	PublishStats(v any) error
}

// pointRecorder samples telemetry points.
type pointRecorder interface {
	Record(now time.Time) int
}

// loopLogger is the logging surface the loop needs.
type loopLogger interface {
	Warn(msg string, args ...any)
}

// appLoop runs the twin and its outbound mirrors on one goroutine.
// publisher and recorder are optional.
type appLoop struct {
	twin      ticker
	publisher statePublisher
	recorder  pointRecorder
	logger    loopLogger

	lastStats time.Time
}

// Run ticks every interval until ctx is done.
func (l *appLoop) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			l.step(now)
		}
	}
}

// step runs one tick: the twin first, then the mirrors see its result.
func (l *appLoop) step(now time.Time) {
	l.twin.Update(now)

	if l.publisher != nil {
		l.publisher.Flush()
		if now.Sub(l.lastStats) >= statsInterval {
			l.lastStats = now
			if err := l.publisher.PublishStats(l.twin.Stats()); err != nil && l.logger != nil {
				l.logger.Warn("publishing stats failed", "error", err)
			}
		}
	}

	if l.recorder != nil {
		l.recorder.Record(now)
	}
}
