package application

import (
	"fmt"
	"time"

	maintenance "iot-console/internal/maintenance/domain"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

// FallbackVersion tags the canned content so operators can tell which
// defaults a degraded run shipped with.
const FallbackVersion = "v2"

// FallbackPolicy substitutes deterministic default content when an AI
// generation stage fails. The substitution depends only on the stage
// identity, never on the failed call's partial response.
type FallbackPolicy struct {
	policy rules.SelectionPolicy
}

// NewFallbackPolicy constructs a policy using the given selection policy
// table for thresholds and defaults.
func NewFallbackPolicy(policy rules.SelectionPolicy) *FallbackPolicy {
	return &FallbackPolicy{policy: policy}
}

// Rules returns the canned four-rule monitoring set.
func (f *FallbackPolicy) Rules() []rules.GeneratedRule {
	threshold := f.policy.HighTempThresholdC
	if threshold <= 0 {
		threshold = rules.DefaultSelectionPolicy().HighTempThresholdC
	}
	list := []rules.GeneratedRule{
		{
			ID:          "fallback-rule-001",
			Name:        "Over-temperature alert",
			Description: "Alert when the operating temperature exceeds the safe limit.",
			Condition: rules.Condition{
				Metric:   "temperature",
				Operator: rules.OperatorGreater,
				Value:    fmt.Sprintf("%g", threshold),
			},
			Action:   rules.Action{Type: "notification", Config: map[string]string{"channel": "operations"}},
			Category: rules.CategoryTemperature,
		},
		{
			ID:          "fallback-rule-002",
			Name:        "Connectivity loss alert",
			Description: "Alert when the device stops reporting.",
			Condition: rules.Condition{
				Metric:   "status",
				Operator: rules.OperatorEqual,
				Value:    "OFFLINE",
			},
			Action:   rules.Action{Type: "notification", Config: map[string]string{"channel": "operations"}},
			Category: rules.CategoryConnectivity,
		},
		{
			ID:          "fallback-rule-003",
			Name:        "Abnormal power draw",
			Description: "Alert when power consumption leaves the expected envelope.",
			Condition: rules.Condition{
				Metric:   "power_consumption",
				Operator: rules.OperatorGreaterOrEqual,
				Value:    "110",
			},
			Action:   rules.Action{Type: "notification", Config: map[string]string{"channel": "operations"}},
			Category: rules.CategoryPower,
		},
		{
			ID:          "fallback-rule-004",
			Name:        "Idle consumption review",
			Description: "Flag sustained standby consumption for efficiency review.",
			Condition: rules.Condition{
				Metric:   "standby_power",
				Operator: rules.OperatorGreater,
				Value:    "5",
			},
			Action:   rules.Action{Type: "report", Config: map[string]string{"period": "weekly"}},
			Category: rules.CategoryEfficiency,
		},
	}
	return f.policy.ApplyDefaults(list)
}

// Maintenance returns the canned two-item schedule.
func (f *FallbackPolicy) Maintenance(now time.Time) []maintenance.Item {
	items := []maintenance.Item{
		{
			ID:          "fallback-maint-001",
			TaskName:    "Visual inspection",
			Description: "Inspect the device housing, cabling and mounting for damage or wear.",
			Frequency:   maintenance.FrequencyMonthly,
			Priority:    "MEDIUM",
		},
		{
			ID:          "fallback-maint-002",
			TaskName:    "Firmware and calibration check",
			Description: "Verify firmware is current and sensors read within calibration tolerance.",
			Frequency:   maintenance.FrequencyQuarterly,
			Priority:    "MEDIUM",
		},
	}
	for i := range items {
		items[i] = items[i].WithSchedule(now)
	}
	return items
}

// Safety returns the canned three-precaution set.
func (f *FallbackPolicy) Safety() []safety.Precaution {
	return []safety.Precaution{
		{
			ID:          "fallback-safety-001",
			Title:       "Disconnect power before servicing",
			Description: "Isolate the device from its supply before opening the housing.",
			Severity:    safety.SeverityCritical,
			Category:    "electrical",
			Mitigation:  "Follow lock-out/tag-out procedure.",
		},
		{
			ID:          "fallback-safety-002",
			Title:       "Allow hot surfaces to cool",
			Description: "Device surfaces may remain hot after operation.",
			Severity:    safety.SeverityHigh,
			Category:    "thermal",
			Mitigation:  "Wait at least 15 minutes after shutdown; wear heat-resistant gloves.",
		},
		{
			ID:          "fallback-safety-003",
			Title:       "Use rated replacement parts only",
			Description: "Unrated parts can void certification and create hazards.",
			Severity:    safety.SeverityMedium,
			Category:    "mechanical",
			Mitigation:  "Source spares from the manufacturer's approved list.",
		},
	}
}

// Degradable reports whether the stage has fallback content. Knowledge
// indexing has nothing to substitute; it is only marked degraded.
func (f *FallbackPolicy) Degradable(stage onboarding.Stage) bool {
	switch stage {
	case onboarding.StageRuleGeneration,
		onboarding.StageMaintenanceGeneration,
		onboarding.StageSafetyGeneration,
		onboarding.StageKnowledgeIndexing:
		return true
	default:
		return false
	}
}
