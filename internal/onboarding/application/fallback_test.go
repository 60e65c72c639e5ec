package application

import (
	"reflect"
	"testing"
	"time"

	maintenance "iot-console/internal/maintenance/domain"
	onboarding "iot-console/internal/onboarding/domain"
	rules "iot-console/internal/rules/domain"
)

func TestFallbackRulesShape(t *testing.T) {
	f := NewFallbackPolicy(rules.DefaultSelectionPolicy())
	list := f.Rules()
	if len(list) != 4 {
		t.Fatalf("fallback rules = %d, want 4", len(list))
	}
	for _, r := range list {
		if r.ID == "" || r.Name == "" {
			t.Fatalf("fallback rule missing id or name: %+v", r)
		}
		if !r.Condition.Operator.Valid() {
			t.Fatalf("rule %s has invalid operator %q", r.ID, r.Condition.Operator)
		}
		if r.Action.Type == "" {
			t.Fatalf("rule %s has no action", r.ID)
		}
		if !r.Priority.Valid() {
			t.Fatalf("rule %s has invalid priority %q", r.ID, r.Priority)
		}
	}
	// Efficiency stays unselected by default; the alert categories are on.
	for _, r := range list {
		wantSelected := r.Category != rules.CategoryEfficiency
		if r.Selected != wantSelected {
			t.Fatalf("rule %s selected = %v, want %v", r.ID, r.Selected, wantSelected)
		}
	}
}

func TestFallbackRulesUseConfiguredThreshold(t *testing.T) {
	policy := rules.DefaultSelectionPolicy()
	policy.HighTempThresholdC = 95
	f := NewFallbackPolicy(policy)
	list := f.Rules()
	if list[0].Condition.Value != "95" {
		t.Fatalf("over-temperature threshold = %q, want 95", list[0].Condition.Value)
	}
}

func TestFallbackMaintenanceSchedule(t *testing.T) {
	now := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	f := NewFallbackPolicy(rules.DefaultSelectionPolicy())
	items := f.Maintenance(now)
	if len(items) != 2 {
		t.Fatalf("fallback maintenance = %d, want 2", len(items))
	}
	if items[0].Frequency != maintenance.FrequencyMonthly || items[1].Frequency != maintenance.FrequencyQuarterly {
		t.Fatalf("frequencies = %s/%s", items[0].Frequency, items[1].Frequency)
	}
	if items[0].NextMaintenance.IsZero() {
		t.Fatal("schedule dates not filled")
	}
	// Same clock, same schedule.
	if !reflect.DeepEqual(items, f.Maintenance(now)) {
		t.Fatal("fallback maintenance not deterministic")
	}
}

func TestFallbackSafetySet(t *testing.T) {
	f := NewFallbackPolicy(rules.DefaultSelectionPolicy())
	precautions := f.Safety()
	if len(precautions) != 3 {
		t.Fatalf("fallback safety = %d, want 3", len(precautions))
	}
	for _, p := range precautions {
		if p.Title == "" || p.Mitigation == "" {
			t.Fatalf("precaution %s incomplete", p.ID)
		}
		if !p.Severity.Valid() {
			t.Fatalf("precaution %s has invalid severity %q", p.ID, p.Severity)
		}
	}
}

func TestFallbackDegradableStages(t *testing.T) {
	f := NewFallbackPolicy(rules.DefaultSelectionPolicy())
	for _, stage := range []onboarding.Stage{
		onboarding.StageRuleGeneration,
		onboarding.StageMaintenanceGeneration,
		onboarding.StageSafetyGeneration,
		onboarding.StageKnowledgeIndexing,
	} {
		if !f.Degradable(stage) {
			t.Fatalf("stage %s should be degradable", stage)
		}
	}
	for _, stage := range []onboarding.Stage{
		onboarding.StageUpload,
		onboarding.StageDeviceCreate,
		onboarding.StageComplete,
	} {
		if f.Degradable(stage) {
			t.Fatalf("stage %s should not be degradable", stage)
		}
	}
}
