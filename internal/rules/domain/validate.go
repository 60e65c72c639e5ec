package rules

import "fmt"

// ValidationErrors maps a field path to its first validation failure. An
// empty map means the rule is valid; validation never panics or returns a Go
// error.
type ValidationErrors map[string]string

// Valid returns true when no field failed validation.
func (v ValidationErrors) Valid() bool {
	return len(v) == 0
}

func (v ValidationErrors) add(field, message string) {
	if _, exists := v[field]; !exists {
		v[field] = message
	}
}

// Validate checks rule invariants: at least one condition, at least one
// action, a device id (or wildcard) on every condition, a supported operator
// on every condition, and a logic operator on every condition after the
// first.
func Validate(r Rule) ValidationErrors {
	errs := ValidationErrors{}
	if r.Name == "" {
		errs.add("name", "name is required")
	}
	if len(r.Conditions) == 0 {
		errs.add("conditions", "at least one condition is required")
	}
	if len(r.Actions) == 0 {
		errs.add("actions", "at least one action is required")
	}
	if r.Priority != "" && !r.Priority.Valid() {
		errs.add("priority", "priority must be LOW, MEDIUM or HIGH")
	}
	for i, c := range r.Conditions {
		if c.DeviceID == "" {
			errs.add(fmt.Sprintf("conditions[%d].deviceId", i), "device id or '*' is required")
		}
		if c.Metric == "" {
			errs.add(fmt.Sprintf("conditions[%d].metric", i), "metric is required")
		}
		if !c.Operator.Valid() {
			errs.add(fmt.Sprintf("conditions[%d].operator", i), "operator must be one of > < = != >= <=")
		}
		if i == 0 {
			if c.LogicOperator != "" && !c.LogicOperator.Valid() {
				errs.add("conditions[0].logicOperator", "logic operator must be AND or OR")
			}
			continue
		}
		if !c.LogicOperator.Valid() {
			errs.add(fmt.Sprintf("conditions[%d].logicOperator", i), "logic operator AND or OR is required")
		}
	}
	for i, a := range r.Actions {
		if a.Type == "" {
			errs.add(fmt.Sprintf("actions[%d].type", i), "action type is required")
		}
	}
	return errs
}
