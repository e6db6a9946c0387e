package feed

import (
	"fmt"
	"strings"

	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/mqtt"
)

// Subscriber is the subset of the MQTT client used by MQTTSource.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTTSource feeds advertisements published by BLE gateways over MQTT.
type MQTTSource struct {
	sub      Subscriber
	topic    string
	qos      byte
	ingestor *Ingestor
}

// NewMQTTSource creates a source for topic. Wildcards are allowed.
func NewMQTTSource(sub Subscriber, topic string, qos byte, ingestor *Ingestor) *MQTTSource {
	return &MQTTSource{sub: sub, topic: topic, qos: qos, ingestor: ingestor}
}

// Start subscribes to the advertisement topic.
func (s *MQTTSource) Start() error {
	if err := s.sub.Subscribe(s.topic, s.qos, s.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", s.topic, err)
	}
	return nil
}

// Stop unsubscribes from the advertisement topic.
func (s *MQTTSource) Stop() error {
	return s.sub.Unsubscribe(s.topic)
}

// Topic returns the subscribed topic filter.
func (s *MQTTSource) Topic() string {
	return s.topic
}

// handle never returns an error: bad messages are counted by the ingestor.
func (s *MQTTSource) handle(topic string, payload []byte) error {
	s.ingestor.HandleMessage("mqtt:"+gatewayFromTopic(topic), payload)
	return nil
}

// gatewayFromTopic returns the last topic level, which gateways set to
// their own name.
func gatewayFromTopic(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
