package mqtt

import "strings"

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "virtualtwin"

// Topics builds the twin's MQTT topics for one vehicle:
//
//	{prefix}/{vehicle}/status             online/offline, retained, LWT
//	{prefix}/{vehicle}/state/{slice}      retained JSON per state slice
//	{prefix}/{vehicle}/command/{name}     inbound user commands
//	{prefix}/{vehicle}/stats              engine counters
type Topics struct {
	Prefix  string
	Vehicle string
}

// NewTopics creates a builder. An empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix, vehicle string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{Prefix: strings.Trim(prefix, "/"), Vehicle: vehicle}
}

func (t Topics) base() string {
	return t.Prefix + "/" + t.Vehicle
}

// Status returns the availability topic.
//
// Example: virtualtwin/prius/status
func (t Topics) Status() string {
	return t.base() + "/status"
}

// State returns the topic for one state slice.
//
// Example: virtualtwin/prius/state/audio
func (t Topics) State(slice string) string {
	return t.base() + "/state/" + slice
}

// Command returns the topic for one command.
//
// Example: virtualtwin/prius/command/set_volume
func (t Topics) Command(name string) string {
	return t.base() + "/command/" + name
}

// AllCommands returns the subscription pattern for every command.
//
// Pattern: virtualtwin/prius/command/+
func (t Topics) AllCommands() string {
	return t.base() + "/command/+"
}

// Stats returns the engine counters topic.
//
// Example: virtualtwin/prius/stats
func (t Topics) Stats() string {
	return t.base() + "/stats"
}

// CommandName extracts the command name from a command topic. It returns
// false for topics outside this vehicle's command tree.
func (t Topics) CommandName(topic string) (string, bool) {
	name, ok := strings.CutPrefix(topic, t.base()+"/command/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return "", false
	}
	return name, true
}
