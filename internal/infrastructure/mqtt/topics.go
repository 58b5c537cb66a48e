package mqtt

import "strings"

// DefaultTopicPrefix is used when the configured prefix is empty.
const DefaultTopicPrefix = "signage"

// Topics builds the signage topic tree under a prefix:
//
//	<prefix>/system/status            retained online/offline status
//	<prefix>/events/<kind>            change notifications (display.*, views.changed)
//	<prefix>/display/<id>/presence    heartbeats published by display clients
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix. Trailing slashes are
// trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of the topic tree.
func (t Topics) Prefix() string {
	return t.root()
}

func (t Topics) root() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus is where the service announces itself and where the broker
// publishes the last will on an unexpected disconnect.
func (t Topics) SystemStatus() string {
	return t.root() + "/system/status"
}

// Events is the prefix for change notifications. Pass it to
// signage.NewMQTTSink.
func (t Topics) Events() string {
	return t.root() + "/events"
}

// Event returns the topic for a single event kind, e.g. signage/events/views.changed.
func (t Topics) Event(kind string) string {
	return t.Events() + "/" + kind
}

// AllEvents matches every change notification.
func (t Topics) AllEvents() string {
	return t.Events() + "/#"
}

// DisplayPresence returns the heartbeat topic of one display.
func (t Topics) DisplayPresence(displayID string) string {
	return t.root() + "/display/" + displayID + "/presence"
}

// AllDisplayPresence matches the heartbeat topic of every display.
func (t Topics) AllDisplayPresence() string {
	return t.root() + "/display/+/presence"
}

// DisplayIDFromPresence extracts the display ID from a presence topic.
// It reports false for topics outside this tree.
func (t Topics) DisplayIDFromPresence(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.root()+"/display/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/presence")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
