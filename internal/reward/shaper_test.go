package reward

import (
	"errors"
	"math"
	"testing"

	"pixelppo/internal/model"
)

func field(t *testing.T, values ...float64) model.Field {
	t.Helper()
	f, err := model.FieldFrom(1, 1, len(values), values)
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	return f
}

func TestShaperMinorityMajorityScenario(t *testing.T) {
	shaper := Shaper{MinorityBonus: 1.0, MajorityBonus: 0.25}
	out, err := shaper.Reward(field(t, 1, 0, 0, 1), field(t, 1, 1, 0, 0))
	if err != nil {
		t.Fatalf("reward: %v", err)
	}
	want := []float64{1.0, -1.0, 0.25, -0.25}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Fatalf("reward[%d]=%f want %f (all=%v)", i, out.Data[i], want[i], out.Data)
		}
	}
}

func TestShaperIsDeterministic(t *testing.T) {
	shaper := DefaultShaper()
	action := field(t, 1, 1, 0, 0, 1)
	target := field(t, 0, 1, 0, 1, 1)
	first, _ := shaper.Reward(action, target)
	for i := 0; i < 5; i++ {
		again, _ := shaper.Reward(action, target)
		for j := range first.Data {
			if first.Data[j] != again.Data[j] {
				t.Fatalf("non-deterministic reward at %d", j)
			}
		}
	}
}

func TestShaperShapeMismatch(t *testing.T) {
	_, err := DefaultShaper().Reward(field(t, 1, 0), field(t, 1, 0, 1))
	if !errors.Is(err, model.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
}

func TestShaperValidate(t *testing.T) {
	if err := (Shaper{MinorityBonus: -1}).Validate(); err == nil {
		t.Fatal("expected minority validation error")
	}
	if err := (Shaper{MinorityBonus: 1, MajorityBonus: -0.1}).Validate(); err == nil {
		t.Fatal("expected majority validation error")
	}
	if err := DefaultShaper().Validate(); err != nil {
		t.Fatalf("default shaper invalid: %v", err)
	}
}

func TestMeanReward(t *testing.T) {
	got := MeanReward(field(t, 1.0, -1.0, 0.25, -0.25, 0.5))
	if math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("mean reward=%f want 0.1", got)
	}
	if MeanReward(model.Field{}) != 0 {
		t.Fatal("expected zero mean for empty field")
	}
}
