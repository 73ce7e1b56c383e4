// Package mqtt connects the twin to an MQTT broker.
//
// The broker is optional. When enabled, the telemetry package publishes
// retained state slices through it and accepts user commands from it:
//
//	Store ──▶ telemetry.Publisher ──▶ {prefix}/{vehicle}/state/{slice}
//	{prefix}/{vehicle}/command/+ ──▶ telemetry.CommandSubscriber ──▶ twin.Enqueue
//
// The client tracks subscriptions and restores them after a reconnect. A
// Last Will on {prefix}/{vehicle}/status marks the twin offline if it
// drops without a clean Close.
//
// # Usage
//
//	topics := mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.Vehicle.Name)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package mqtt
