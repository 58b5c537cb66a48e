package signage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// EventKind names a change notification.
type EventKind string

// Change notifications published by the Service.
const (
	// EventDisplayCreated carries the new Display.
	EventDisplayCreated EventKind = "display.created"

	// EventDisplayUpdated carries the updated Display.
	EventDisplayUpdated EventKind = "display.updated"

	// EventDisplayDeleted carries the Display as it was before deletion.
	EventDisplayDeleted EventKind = "display.deleted"

	// EventViewsChanged carries the Display owning the changed view.
	EventViewsChanged EventKind = "views.changed"
)

// EventKinds lists every kind the Service publishes.
var EventKinds = []EventKind{
	EventDisplayCreated,
	EventDisplayUpdated,
	EventDisplayDeleted,
	EventViewsChanged,
}

// EventSink receives change notifications. Delivery is best effort:
// sinks may drop events and callers never retry.
type EventSink interface {
	Publish(ctx context.Context, kind EventKind, payload any) error
}

// MultiSink fans an event out to several sinks.
type MultiSink []EventSink

// Publish delivers the event to every sink and joins their errors.
func (m MultiSink) Publish(ctx context.Context, kind EventKind, payload any) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, kind, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// noopSink discards every event.
type noopSink struct{}

func (noopSink) Publish(context.Context, EventKind, any) error { return nil }

// MQTTPublisher is the subset of the MQTT client the MQTTSink needs.
type MQTTPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// MQTTSink publishes events as JSON to "<prefix>/<kind>" at QoS 1.
type MQTTSink struct {
	client MQTTPublisher
	prefix string
}

// DefaultEventTopicPrefix is the MQTT topic prefix for change notifications.
const DefaultEventTopicPrefix = "signage/events"

// NewMQTTSink creates an MQTT event sink. An empty prefix uses
// DefaultEventTopicPrefix.
func NewMQTTSink(client MQTTPublisher, prefix string) *MQTTSink {
	if prefix == "" {
		prefix = DefaultEventTopicPrefix
	}
	return &MQTTSink{client: client, prefix: prefix}
}

// Publish marshals the event envelope and publishes it.
func (s *MQTTSink) Publish(_ context.Context, kind EventKind, payload any) error {
	data, err := json.Marshal(map[string]any{
		"type":    kind,
		"payload": payload,
	})
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", kind, err)
	}

	topic := s.prefix + "/" + string(kind)
	if err := s.client.Publish(topic, data, 1, false); err != nil {
		return fmt.Errorf("publishing %s event: %w", kind, err)
	}
	return nil
}
