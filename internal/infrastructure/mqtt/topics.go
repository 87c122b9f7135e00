package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes used by the hub.
const (
	// TopicPrefixCore is the base for state the hub publishes.
	TopicPrefixCore = "graylogic/core"

	// TopicPrefixCommand is the base for requests other services send the hub.
	TopicPrefixCommand = "graylogic/command"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "graylogic/system"
)

// Topics provides builders for hub MQTT topics.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("hue-3")
//	// Returns: "graylogic/core/device/hue-3/state"
type Topics struct{}

// DeviceState returns the retained state topic for one device.
//
// Example: graylogic/core/device/hue-3/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", TopicPrefixCore, deviceID)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: graylogic/core/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", TopicPrefixCore)
}

// RefreshRequest returns the topic a command service publishes to after it
// has changed a device, asking the hub to re-poll that device's vendor.
//
// Example: graylogic/command/refresh/switchbot-C0FFEE
func (Topics) RefreshRequest(deviceID string) string {
	return fmt.Sprintf("%s/refresh/%s", TopicPrefixCommand, deviceID)
}

// AllRefreshRequests returns a pattern matching every refresh request.
//
// Pattern: graylogic/command/refresh/+
func (Topics) AllRefreshRequests() string {
	return fmt.Sprintf("%s/refresh/+", TopicPrefixCommand)
}

// RateLimit returns the retained topic carrying SwitchBot quota usage.
//
// Example: graylogic/system/ratelimit/switchbot
func (Topics) RateLimit(vendor string) string {
	return fmt.Sprintf("%s/ratelimit/%s", TopicPrefixSystem, vendor)
}

// SystemStatus returns the hub status topic (online/offline, LWT).
//
// Example: graylogic/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// DeviceIDFromRefreshTopic extracts the device ID from a refresh request
// topic. It reports false for any other topic or an empty ID.
func DeviceIDFromRefreshTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, TopicPrefixCommand+"/refresh/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
