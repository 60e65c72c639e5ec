package onboarding

import "sort"

// Result is the terminal read-only summary of one onboarding run. It is
// created once, at completion or cancellation, and never mutated afterwards.
type Result struct {
	RunID            string  `json:"runId"`
	DeviceID         string  `json:"deviceId"`
	RuleCount        int     `json:"ruleCount"`
	MaintenanceCount int     `json:"maintenanceCount"`
	SafetyCount      int     `json:"safetyCount"`
	ElapsedMs        int64   `json:"elapsedMs"`
	Cancelled        bool    `json:"cancelled"`
	DegradedStages   []Stage `json:"degradedStages,omitempty"`
}

// Degraded returns true when at least one stage completed via fallback.
func (r Result) Degraded() bool {
	return len(r.DegradedStages) > 0
}

// StageDegraded returns true when the given stage completed via fallback.
func (r Result) StageDegraded(stage Stage) bool {
	for _, s := range r.DegradedStages {
		if s == stage {
			return true
		}
	}
	return false
}

// SortStages orders stages by pipeline position, for stable output.
func SortStages(stages []Stage) []Stage {
	out := make([]Stage, len(stages))
	copy(out, stages)
	sort.Slice(out, func(i, j int) bool { return out[i].Order() < out[j].Order() })
	return out
}
