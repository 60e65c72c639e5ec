package rules

import "testing"

func minimalRule() Rule {
	return Rule{
		Name: "over temperature",
		Conditions: []Condition{
			{Metric: "temperature", Operator: OperatorGreater, Value: "85", DeviceID: "sensor-001"},
		},
		Actions: []Action{
			{Type: "notification"},
		},
	}
}

func TestValidate_AcceptsMinimalRule(t *testing.T) {
	errs := Validate(minimalRule())
	if !errs.Valid() {
		t.Fatalf("expected valid rule, got errors: %v", errs)
	}
}

func TestValidate_RejectsZeroActions(t *testing.T) {
	rule := minimalRule()
	rule.Actions = nil
	errs := Validate(rule)
	if errs.Valid() {
		t.Fatal("expected validation errors")
	}
	if _, ok := errs["actions"]; !ok {
		t.Fatalf("expected error keyed on actions, got %v", errs)
	}
}

func TestValidate_RejectsZeroConditions(t *testing.T) {
	rule := minimalRule()
	rule.Conditions = nil
	errs := Validate(rule)
	if _, ok := errs["conditions"]; !ok {
		t.Fatalf("expected error keyed on conditions, got %v", errs)
	}
}

func TestValidate_RejectsConditionWithoutDeviceID(t *testing.T) {
	rule := minimalRule()
	rule.Conditions[0].DeviceID = ""
	errs := Validate(rule)
	if _, ok := errs["conditions[0].deviceId"]; !ok {
		t.Fatalf("expected error keyed on conditions[0].deviceId, got %v", errs)
	}
}

func TestValidate_AcceptsWildcardDeviceID(t *testing.T) {
	rule := minimalRule()
	rule.Conditions[0].DeviceID = WildcardDeviceID
	if errs := Validate(rule); !errs.Valid() {
		t.Fatalf("expected wildcard condition to validate, got %v", errs)
	}
}

func TestValidate_FirstConditionNeedsNoLogicOperator(t *testing.T) {
	rule := minimalRule()
	rule.Conditions = append(rule.Conditions, Condition{
		Metric: "humidity", Operator: OperatorLess, Value: "30", DeviceID: "sensor-001",
	})
	errs := Validate(rule)
	if _, ok := errs["conditions[0].logicOperator"]; ok {
		t.Fatal("first condition must not require a logic operator")
	}
	if _, ok := errs["conditions[1].logicOperator"]; !ok {
		t.Fatalf("second condition must require a logic operator, got %v", errs)
	}
	rule.Conditions[1].LogicOperator = LogicOr
	if errs := Validate(rule); !errs.Valid() {
		t.Fatalf("expected valid rule after setting logic operator, got %v", errs)
	}
}

func TestValidate_RejectsUnknownOperator(t *testing.T) {
	rule := minimalRule()
	rule.Conditions[0].Operator = Operator("~=")
	errs := Validate(rule)
	if _, ok := errs["conditions[0].operator"]; !ok {
		t.Fatalf("expected operator error, got %v", errs)
	}
}

func TestOperator_Valid(t *testing.T) {
	valid := []Operator{OperatorGreater, OperatorLess, OperatorEqual, OperatorNotEqual, OperatorGreaterOrEqual, OperatorLessOrEqual}
	for _, op := range valid {
		if !op.Valid() {
			t.Errorf("operator %q should be valid", op)
		}
	}
	if Operator("<>").Valid() {
		t.Error("operator <> should be invalid")
	}
}
