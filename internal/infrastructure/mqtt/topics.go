package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the presence service uses.
const TopicPrefix = "graylogic/presence"

// Topics provides builders for presence MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.DeviceState("e3:ed:26:c7:83:c4")
//	// Returns: "graylogic/presence/device/e3ed26c783c4/state"
type Topics struct{}

// TopicAddress renders a device address as a single topic level by
// removing separators ("e3:ed:26:c7:83:c4" -> "e3ed26c783c4").
func TopicAddress(address string) string {
	r := strings.NewReplacer(":", "", "-", "", ".", "")
	return strings.ToLower(r.Replace(address))
}

// DeviceState returns the retained state topic for one device.
//
// Example: graylogic/presence/device/e3ed26c783c4/state
func (Topics) DeviceState(address string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefix, TopicAddress(address))
}

// Event returns the topic for presence events of one kind.
//
// Example: graylogic/presence/event/lost
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, kind)
}

// Adverts returns the topic a scanner gateway publishes advertisements on.
//
// Example: graylogic/presence/adverts/garden-gw
func (Topics) Adverts(gateway string) string {
	return fmt.Sprintf("%s/adverts/%s", TopicPrefix, gateway)
}

// Status returns the retained service status topic (online/offline, LWT).
//
// Example: graylogic/presence/status
func (Topics) Status() string {
	return fmt.Sprintf("%s/status", TopicPrefix)
}

// AllAdverts returns a pattern matching every gateway's advertisements.
//
// Pattern: graylogic/presence/adverts/#
func (Topics) AllAdverts() string {
	return fmt.Sprintf("%s/adverts/#", TopicPrefix)
}

// AllDeviceStates returns a pattern matching all device state topics.
//
// Pattern: graylogic/presence/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefix)
}

// AllEvents returns a pattern matching all presence events.
//
// Pattern: graylogic/presence/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}
