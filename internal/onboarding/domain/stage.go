package onboarding

// Stage is one ordered unit of the onboarding pipeline. Each stage owns a
// fixed share of the 0-100 progress range; progress emitted for a stage never
// leaves its band.
type Stage string

const (
	StageUpload                Stage = "upload"
	StageDeviceCreate          Stage = "device"
	StageRuleGeneration        Stage = "rules"
	StageMaintenanceGeneration Stage = "maintenance"
	StageSafetyGeneration      Stage = "safety"
	StageKnowledgeIndexing     Stage = "knowledge"
	StageComplete              Stage = "complete"
)

// stageOrder lists the pipeline stages in execution order.
var stageOrder = []Stage{
	StageUpload,
	StageDeviceCreate,
	StageRuleGeneration,
	StageMaintenanceGeneration,
	StageSafetyGeneration,
	StageKnowledgeIndexing,
	StageComplete,
}

// stageWeights reserves each stage's share of the progress range. The weights
// are an implementation constant and sum to 100.
var stageWeights = map[Stage]int{
	StageUpload:                10,
	StageDeviceCreate:          15,
	StageRuleGeneration:        25,
	StageMaintenanceGeneration: 20,
	StageSafetyGeneration:      20,
	StageKnowledgeIndexing:     10,
	StageComplete:              0,
}

// Stages returns the pipeline stages in execution order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// Weight returns the stage's share of the progress range.
func (s Stage) Weight() int {
	return stageWeights[s]
}

// Order returns the stage's position in the pipeline, or -1 when unknown.
func (s Stage) Order() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Valid returns true when the stage is part of the pipeline.
func (s Stage) Valid() bool {
	return s.Order() >= 0
}

// Band returns the stage's reserved progress band [floor, ceiling].
func (s Stage) Band() (floor, ceiling int) {
	for _, stage := range stageOrder {
		if stage == s {
			return floor, floor + stageWeights[stage]
		}
		floor += stageWeights[stage]
	}
	return 0, 0
}

// TotalWeight sums all stage weights. It exists so tests can pin the
// invariant that the weights cover exactly the 0-100 range.
func TotalWeight() int {
	total := 0
	for _, w := range stageWeights {
		total += w
	}
	return total
}
