package onboarding

import "errors"

// ConnectionType names the transport a device will use once onboarded. The
// pipeline only transports the matching config payload; it never interprets
// it.
type ConnectionType string

const (
	ConnectionMQTT ConnectionType = "MQTT"
	ConnectionHTTP ConnectionType = "HTTP"
	ConnectionCoAP ConnectionType = "COAP"
)

// Valid returns true when the connection type is supported.
func (c ConnectionType) Valid() bool {
	return c == ConnectionMQTT || c == ConnectionHTTP || c == ConnectionCoAP
}

// DeviceDraft carries the in-progress device attributes collected before
// onboarding starts. Once submitted to the orchestrator it is treated as
// immutable input.
type DeviceDraft struct {
	Name             string            `json:"name"`
	DeviceType       string            `json:"deviceType"`
	Location         string            `json:"location,omitempty"`
	Manufacturer     string            `json:"manufacturer,omitempty"`
	Model            string            `json:"model,omitempty"`
	ConnectionType   ConnectionType    `json:"connectionType"`
	ConnectionConfig map[string]string `json:"connectionConfig,omitempty"`
	OrganizationID   string            `json:"organizationId,omitempty"`
}

// Validate checks draft invariants.
func (d DeviceDraft) Validate() error {
	if d.Name == "" {
		return errors.New("device draft: empty name")
	}
	if d.DeviceType == "" {
		return errors.New("device draft: empty device type")
	}
	if d.ConnectionType != "" && !d.ConnectionType.Valid() {
		return errors.New("device draft: unsupported connection type")
	}
	return nil
}
