package genai

import (
	"testing"

	maintenance "iot-console/internal/maintenance/domain"
	rules "iot-console/internal/rules/domain"
	safety "iot-console/internal/safety/domain"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		ok   bool
	}{
		{"bare array", `[{"name":"a"}]`, `[{"name":"a"}]`, true},
		{"fenced", "```json\n[{\"name\":\"a\"}]\n```", `[{"name":"a"}]`, true},
		{"fenced no lang", "```\n[1,2]\n```", `[1,2]`, true},
		{"prose around", `Here you go: [1,2] hope that helps`, `[1,2]`, true},
		{"object", `{"rules":[]}`, `{"rules":[]}`, true},
		{"no json", `sorry, I cannot help`, "", false},
		{"unterminated", `[1,2`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.raw)
			if tt.ok && err != nil {
				t.Fatalf("extractJSON(%q): %v", tt.raw, err)
			}
			if !tt.ok {
				if err == nil {
					t.Fatalf("extractJSON(%q) = %q, want error", tt.raw, got)
				}
				return
			}
			if got != tt.want {
				t.Fatalf("extractJSON(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeOperator(t *testing.T) {
	tests := []struct {
		raw  string
		want rules.Operator
		ok   bool
	}{
		{">", rules.OperatorGreater, true},
		{"==", rules.OperatorEqual, true},
		{"greater_than", rules.OperatorGreater, true},
		{" LESS_THAN_OR_EQUAL ", rules.OperatorLessOrEqual, true},
		{"equals", rules.OperatorEqual, true},
		{"between", "", false},
	}
	for _, tt := range tests {
		got, ok := normalizeOperator(tt.raw)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("normalizeOperator(%q) = %q/%v, want %q/%v", tt.raw, got, ok, tt.want, tt.ok)
		}
	}
}

func TestMapRules(t *testing.T) {
	payloads := []rulePayload{
		{Name: "Over temp", Metric: "temperature", Operator: "GREATER_THAN", Value: "80", Priority: "high", Category: "Temperature"},
		{Name: "", Metric: "ignored"},
		{Name: "No metric"},
		{Name: "Offline", Metric: "status", Operator: "=", Value: "OFFLINE", Category: "connectivity"},
	}
	out, err := mapRules(payloads)
	if err != nil {
		t.Fatalf("mapRules: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("mapped = %d, want 2 (nameless and metricless skipped)", len(out))
	}
	if out[0].Condition.Operator != rules.OperatorGreater {
		t.Fatalf("operator = %q", out[0].Condition.Operator)
	}
	if out[0].Priority != rules.PriorityHigh {
		t.Fatalf("priority = %q, want HIGH", out[0].Priority)
	}
	if out[0].Category != rules.CategoryTemperature {
		t.Fatalf("category = %q", out[0].Category)
	}
	if out[0].Action.Type != "notification" {
		t.Fatalf("default action = %q, want notification", out[0].Action.Type)
	}
}

func TestMapRulesRejectsUnknownOperator(t *testing.T) {
	_, err := mapRules([]rulePayload{
		{Name: "Bad", Metric: "x", Operator: "within", Value: "1"},
	})
	if err == nil {
		t.Fatal("expected error for unsupported operator")
	}
}

func TestMapMaintenanceNormalizesFrequency(t *testing.T) {
	out := mapMaintenance([]maintenancePayload{
		{TaskName: "Filter swap", Frequency: "30", Priority: "medium"},
		{TaskName: "Deep clean", Frequency: "every 3 months"},
		{TaskName: ""},
	})
	if len(out) != 2 {
		t.Fatalf("mapped = %d, want 2", len(out))
	}
	if out[0].Frequency != maintenance.FrequencyMonthly {
		t.Fatalf("frequency = %q, want monthly", out[0].Frequency)
	}
	if out[1].Frequency != maintenance.FrequencyQuarterly {
		t.Fatalf("frequency = %q, want quarterly", out[1].Frequency)
	}
	if out[0].Priority != "MEDIUM" {
		t.Fatalf("priority = %q, want MEDIUM", out[0].Priority)
	}
}

func TestMapSafetyDefaultsSeverity(t *testing.T) {
	out := mapSafety([]safetyPayload{
		{Title: "Shock hazard", Severity: "critical"},
		{Title: "Unknown severity", Severity: "serious"},
	})
	if out[0].Severity != safety.SeverityCritical {
		t.Fatalf("severity = %q, want CRITICAL", out[0].Severity)
	}
	if out[1].Severity != safety.SeverityMedium {
		t.Fatalf("unrecognized severity = %q, want MEDIUM fallback", out[1].Severity)
	}
}
