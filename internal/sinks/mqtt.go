package sinks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Publisher is the subset of the MQTT client used by MQTTPublisher.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// StatePayload is the retained state published for a tracked device.
type StatePayload struct {
	Device    presence.DeviceView `json:"device"`
	Timestamp time.Time           `json:"timestamp"`
}

// MQTTPublisher publishes device state and episodes to MQTT.
//
// Tracked devices get a retained state message on every sighting so late
// subscribers see the current view. Every episode (acquired, lost,
// reacquired, cleared) is published, not retained, on its event topic.
// A clear also empties every retained state topic this publisher wrote.
type MQTTPublisher struct {
	pub    Publisher
	topics mqtt.Topics
	logger Logger

	mu       sync.Mutex
	retained map[string]struct{}
}

// NewMQTTPublisher creates a publisher.
func NewMQTTPublisher(pub Publisher) *MQTTPublisher {
	return &MQTTPublisher{
		pub:      pub,
		logger:   noopLogger{},
		retained: make(map[string]struct{}),
	}
}

// SetLogger sets the logger for the publisher.
func (p *MQTTPublisher) SetLogger(logger Logger) {
	p.logger = logger
}

// Handle is a presence.Handler.
func (p *MQTTPublisher) Handle(_ context.Context, e presence.Event) {
	switch {
	case e.Kind == presence.EventCleared:
		p.clearStates()
	case e.Device.Tracked:
		topic := p.topics.DeviceState(string(e.Device.Address))
		p.mu.Lock()
		p.retained[topic] = struct{}{}
		p.mu.Unlock()
		if err := p.pub.PublishJSON(topic, StatePayload{Device: e.Device, Timestamp: e.At}, true); err != nil {
			p.logger.Warn("publishing device state failed", "topic", topic, "error", err)
		}
	}

	if !e.Kind.Episode() {
		return
	}
	topic := p.topics.Event(string(e.Kind))
	if err := p.pub.PublishJSON(topic, e, false); err != nil {
		p.logger.Warn("publishing presence event failed", "topic", topic, "error", err)
	}
}

// clearStates removes the retained state of every device published so far.
// An empty retained payload deletes the broker's copy.
func (p *MQTTPublisher) clearStates() {
	p.mu.Lock()
	topics := make([]string, 0, len(p.retained))
	for topic := range p.retained {
		topics = append(topics, topic)
	}
	p.retained = make(map[string]struct{})
	p.mu.Unlock()

	sort.Strings(topics)
	for _, topic := range topics {
		if err := p.pub.PublishRetained(topic, nil); err != nil {
			p.logger.Warn("clearing retained device state failed", "topic", topic, "error", err)
		}
	}
}
