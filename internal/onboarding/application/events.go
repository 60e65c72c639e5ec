package application

import "time"

// DeviceOnboarded is published once an onboarding run completes, degraded or
// not. Consumers use it to refresh device lists and trigger notifications.
type DeviceOnboarded struct {
	RunID            string   `json:"runId"`
	DeviceID         string   `json:"deviceId"`
	RuleCount        int      `json:"ruleCount"`
	MaintenanceCount int      `json:"maintenanceCount"`
	SafetyCount      int      `json:"safetyCount"`
	DegradedStages   []string `json:"degradedStages,omitempty"`

	OccurredAt time.Time `json:"occurredAt"`
}

// EventType identifies the event on the wire.
func (DeviceOnboarded) EventType() string { return "onboarding.device_onboarded" }

// OnboardingDegraded is published in addition to DeviceOnboarded when one or
// more generation stages fell back to default content.
type OnboardingDegraded struct {
	RunID    string   `json:"runId"`
	DeviceID string   `json:"deviceId"`
	Stages   []string `json:"stages"`

	OccurredAt time.Time `json:"occurredAt"`
}

// EventType identifies the event on the wire.
func (OnboardingDegraded) EventType() string { return "onboarding.degraded" }
