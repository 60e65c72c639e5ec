package rules

// Category groups generated rules by what they watch. The category drives
// default selection and priority through SelectionPolicy.
type Category string

const (
	CategoryTemperature  Category = "temperature"
	CategoryConnectivity Category = "connectivity"
	CategorySafety       Category = "safety"
	CategoryPower        Category = "power"
	CategoryEfficiency   Category = "efficiency"
	CategoryCost         Category = "cost"
)

// GeneratedRule is a rule proposed by the rule-generation stage (or its
// fallback). Selected is operator-editable before commit and has no side
// effect until the selection is committed.
type GeneratedRule struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Condition   Condition `json:"condition"`
	Action      Action    `json:"action"`
	Priority    Priority  `json:"priority"`
	Category    Category  `json:"category,omitempty"`
	Selected    bool      `json:"selected"`
}

// CategoryDefault is the per-category selection and priority default.
type CategoryDefault struct {
	Selected bool     `yaml:"selected"`
	Priority Priority `yaml:"priority"`
}

// SelectionPolicy decides defaults for generated rules. Safety-critical
// categories (over-temperature, loss of connectivity, safety) come
// pre-selected; cost and efficiency rules start unselected so operators opt
// in. HighTempThresholdC is the single authoritative over-temperature
// threshold used by generated and fallback content.
type SelectionPolicy struct {
	Defaults           map[Category]CategoryDefault `yaml:"defaults"`
	HighTempThresholdC float64                      `yaml:"high_temp_threshold_c"`
}

// DefaultSelectionPolicy returns the built-in policy table.
func DefaultSelectionPolicy() SelectionPolicy {
	return SelectionPolicy{
		Defaults: map[Category]CategoryDefault{
			CategoryTemperature:  {Selected: true, Priority: PriorityHigh},
			CategoryConnectivity: {Selected: true, Priority: PriorityHigh},
			CategorySafety:       {Selected: true, Priority: PriorityHigh},
			CategoryPower:        {Selected: true, Priority: PriorityMedium},
			CategoryEfficiency:   {Selected: false, Priority: PriorityLow},
			CategoryCost:         {Selected: false, Priority: PriorityLow},
		},
		HighTempThresholdC: 85,
	}
}

// ApplyDefaults returns a copy of the rules with selection and priority
// filled from the policy table. A rule whose category is unknown keeps its
// generated values; a rule with an explicit priority keeps it.
func (p SelectionPolicy) ApplyDefaults(list []GeneratedRule) []GeneratedRule {
	out := make([]GeneratedRule, len(list))
	copy(out, list)
	for i := range out {
		def, ok := p.Defaults[out[i].Category]
		if !ok {
			continue
		}
		out[i].Selected = def.Selected
		if out[i].Priority == "" {
			out[i].Priority = def.Priority
		}
	}
	return out
}

// ToggleSelection returns a copy of the rules with exactly the matching
// entry's Selected flag flipped. Unknown ids return the input unchanged.
func ToggleSelection(list []GeneratedRule, id string) []GeneratedRule {
	out := make([]GeneratedRule, len(list))
	copy(out, list)
	for i := range out {
		if out[i].ID == id {
			out[i].Selected = !out[i].Selected
			break
		}
	}
	return out
}

// CommitSelected returns only the rules marked selected.
func CommitSelected(list []GeneratedRule) []GeneratedRule {
	var out []GeneratedRule
	for _, r := range list {
		if r.Selected {
			out = append(out, r)
		}
	}
	return out
}

// ToRule converts a committed generated rule into a persistable rule.
func (g GeneratedRule) ToRule() Rule {
	return Rule{
		ID:          g.ID,
		Name:        g.Name,
		Description: g.Description,
		Conditions:  []Condition{g.Condition},
		Actions:     []Action{g.Action},
		Priority:    g.Priority,
		Active:      true,
	}
}
