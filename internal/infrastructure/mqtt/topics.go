package mqtt

import "fmt"

// TopicPrefix is the root of every vehicle topic.
const TopicPrefix = "vehicle"

// Topics builds the MQTT topics of one vehicle. Using these helpers keeps
// topic naming consistent across publisher and subscriber.
//
//	topics := mqtt.Topics{VehicleID: "vehicle-001"}
//	topics.State()
//	// Returns: "vehicle/vehicle-001/state"
type Topics struct {
	VehicleID string
}

// State returns the retained snapshot topic.
//
// Example: vehicle/vehicle-001/state
func (t Topics) State() string {
	return fmt.Sprintf("%s/%s/state", TopicPrefix, t.VehicleID)
}

// Command returns the inbound command topic.
//
// Example: vehicle/vehicle-001/command
func (t Topics) Command() string {
	return fmt.Sprintf("%s/%s/command", TopicPrefix, t.VehicleID)
}

// Result returns the topic carrying results of MQTT-sourced commands.
//
// Example: vehicle/vehicle-001/result
func (t Topics) Result() string {
	return fmt.Sprintf("%s/%s/result", TopicPrefix, t.VehicleID)
}

// Status returns the presence topic (LWT, online/offline).
//
// Example: vehicle/vehicle-001/status
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, t.VehicleID)
}
