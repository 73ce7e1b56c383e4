package telemetry

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/command"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/infrastructure/mqtt"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/state"
	"github.com/PiotrTopa/cyberpank-prius-gen2-computer/internal/twin"
)

// MessageSubscriber is the part of the MQTT client the command subscriber uses.
type MessageSubscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Enqueuer accepts actions for the next app loop tick.
type Enqueuer interface {
	Enqueue(a state.Action) error
}

// CommandStats holds command subscriber counters.
type CommandStats struct {
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
	Dropped  uint64 `json:"dropped"`
}

// CommandSubscriber turns MQTT command messages into queued user actions.
//
// The command name is the last topic level; the payload is the JSON
// parameter object, e.g. virtualtwin/prius/command/set_volume {"value":30}.
type CommandSubscriber struct {
	client MessageSubscriber
	queue  Enqueuer
	topics mqtt.Topics
	qos    byte
	logger Logger

	accepted atomic.Uint64
	rejected atomic.Uint64
	dropped  atomic.Uint64
}

// NewCommandSubscriber creates a subscriber.
func NewCommandSubscriber(client MessageSubscriber, queue Enqueuer, topics mqtt.Topics, qos byte, logger Logger) *CommandSubscriber {
	if logger == nil {
		logger = noopLogger{}
	}
	return &CommandSubscriber{client: client, queue: queue, topics: topics, qos: qos, logger: logger}
}

// Start subscribes to the vehicle's command topics.
func (s *CommandSubscriber) Start() error {
	if err := s.client.Subscribe(s.topics.AllCommands(), s.qos, s.handle); err != nil {
		return fmt.Errorf("subscribing to commands: %w", err)
	}
	s.logger.Info("listening for remote commands", "topic", s.topics.AllCommands())
	return nil
}

// Stop unsubscribes.
func (s *CommandSubscriber) Stop() error {
	return s.client.Unsubscribe(s.topics.AllCommands())
}

func (s *CommandSubscriber) handle(topic string, payload []byte) error {
	name, ok := s.topics.CommandName(topic)
	if !ok {
		s.rejected.Add(1)
		return fmt.Errorf("%w: topic %q", command.ErrUnknownCommand, topic)
	}

	action, err := command.Decode(name, payload)
	if err != nil {
		s.rejected.Add(1)
		return err
	}

	if err := s.queue.Enqueue(action); err != nil {
		if errors.Is(err, twin.ErrQueueFull) {
			s.dropped.Add(1)
		}
		return fmt.Errorf("enqueueing %s: %w", name, err)
	}
	s.accepted.Add(1)
	s.logger.Debug("remote command queued", "command", name)
	return nil
}

// Stats returns a snapshot of the subscriber counters.
func (s *CommandSubscriber) Stats() CommandStats {
	return CommandStats{
		Accepted: s.accepted.Load(),
		Rejected: s.rejected.Load(),
		Dropped:  s.dropped.Load(),
	}
}
