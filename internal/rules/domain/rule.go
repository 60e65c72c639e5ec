package rules

import (
	"errors"
	"time"
)

// WildcardDeviceID scopes a condition to every device.
const WildcardDeviceID = "*"

// Operator is a comparison operator in a rule condition.
type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorLess           Operator = "<"
	OperatorEqual          Operator = "="
	OperatorNotEqual       Operator = "!="
	OperatorGreaterOrEqual Operator = ">="
	OperatorLessOrEqual    Operator = "<="
)

// Valid returns true when the operator is one of the six supported symbols.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorLess, OperatorEqual,
		OperatorNotEqual, OperatorGreaterOrEqual, OperatorLessOrEqual:
		return true
	default:
		return false
	}
}

// LogicOperator joins a condition to the preceding one.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Valid returns true when the logic operator is supported.
func (l LogicOperator) Valid() bool {
	return l == LogicAnd || l == LogicOr
}

// Priority classifies how urgent a rule is.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Valid returns true when the priority is supported.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Condition is one comparison in a rule expression. The first condition of a
// rule roots the expression and carries no logic operator; every following
// condition must declare AND or OR.
type Condition struct {
	Metric        string        `json:"metric"`
	Operator      Operator      `json:"operator"`
	Value         string        `json:"value"`
	LogicOperator LogicOperator `json:"logicOperator,omitempty"`
	DeviceID      string        `json:"deviceId"`
}

// Action describes what happens when a rule fires. Config is opaque to the
// rule engine and forwarded verbatim to the action executor.
type Action struct {
	Type   string            `json:"type"`
	Config map[string]string `json:"config,omitempty"`
}

// Rule is an automation rule authored manually or generated during
// onboarding.
type Rule struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Conditions     []Condition `json:"conditions"`
	Actions        []Action    `json:"actions"`
	Priority       Priority    `json:"priority"`
	OrganizationID string      `json:"organizationId,omitempty"`
	Active         bool        `json:"active"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// AppliesTo returns true when any condition targets the device directly or
// through the wildcard.
func (r Rule) AppliesTo(deviceID string) bool {
	if deviceID == "" {
		return false
	}
	for _, c := range r.Conditions {
		if c.DeviceID == deviceID || c.DeviceID == WildcardDeviceID {
			return true
		}
	}
	return false
}

// FilterForDevice returns the rules scoped to the device, including
// wildcard-scoped rules.
func FilterForDevice(list []Rule, deviceID string) []Rule {
	var out []Rule
	for _, r := range list {
		if r.AppliesTo(deviceID) {
			out = append(out, r)
		}
	}
	return out
}

// ErrNotFound is returned when a rule does not exist.
var ErrNotFound = errors.New("rules: not found")
