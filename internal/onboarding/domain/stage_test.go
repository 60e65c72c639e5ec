package onboarding

import "testing"

func TestStageWeights_SumTo100(t *testing.T) {
	if total := TotalWeight(); total != 100 {
		t.Fatalf("stage weights sum to %d, want 100", total)
	}
}

func TestStageBands_AreContiguous(t *testing.T) {
	prevCeiling := 0
	for _, stage := range Stages() {
		floor, ceiling := stage.Band()
		if floor != prevCeiling {
			t.Errorf("stage %s floor = %d, want %d", stage, floor, prevCeiling)
		}
		if ceiling < floor {
			t.Errorf("stage %s ceiling %d below floor %d", stage, ceiling, floor)
		}
		prevCeiling = ceiling
	}
	if prevCeiling != 100 {
		t.Errorf("last ceiling = %d, want 100", prevCeiling)
	}
}

func TestStageOrder(t *testing.T) {
	if StageUpload.Order() != 0 {
		t.Errorf("upload order = %d, want 0", StageUpload.Order())
	}
	if StageComplete.Order() != 6 {
		t.Errorf("complete order = %d, want 6", StageComplete.Order())
	}
	if Stage("bogus").Order() != -1 {
		t.Error("unknown stage must have order -1")
	}
	if Stage("bogus").Valid() {
		t.Error("unknown stage must be invalid")
	}
}

func TestCompleteBand_IsTerminal(t *testing.T) {
	floor, ceiling := StageComplete.Band()
	if floor != 100 || ceiling != 100 {
		t.Errorf("complete band = [%d,%d], want [100,100]", floor, ceiling)
	}
}
