package dist

import (
	"math"
	"math/rand"
	"testing"

	"pixelppo/internal/model"
)

func TestSampleLogProbMatchesLogProb(t *testing.T) {
	probs, _ := model.FieldFrom(1, 2, 3, []float64{0.1, 0.5, 0.9, 0, 1, 0.3})
	action, logProb, err := Sample(probs, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	again, err := LogProb(probs, action)
	if err != nil {
		t.Fatalf("log prob: %v", err)
	}
	for i := range logProb.Data {
		if action.Data[i] != 0 && action.Data[i] != 1 {
			t.Fatalf("non-binary action %f", action.Data[i])
		}
		if logProb.Data[i] != again.Data[i] {
			t.Fatalf("log prob mismatch at %d: %f vs %f", i, logProb.Data[i], again.Data[i])
		}
		if math.IsInf(logProb.Data[i], 0) {
			t.Fatalf("unclamped log prob at %d", i)
		}
	}
}

func TestSampleIsSeedable(t *testing.T) {
	probs, _ := model.FieldFrom(1, 1, 6, []float64{0.2, 0.4, 0.6, 0.8, 0.5, 0.5})
	a, _, _ := Sample(probs, rand.New(rand.NewSource(11)))
	b, _, _ := Sample(probs, rand.New(rand.NewSource(11)))
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("same seed produced different actions")
		}
	}
}

func TestLogProbGrad(t *testing.T) {
	if got := LogProbGrad(0.25, 1); math.Abs(got-4) > 1e-12 {
		t.Fatalf("grad for a=1: %f", got)
	}
	if got := LogProbGrad(0.75, 0); math.Abs(got+4) > 1e-9 {
		t.Fatalf("grad for a=0: %f", got)
	}
}

func TestSampleRequiresRand(t *testing.T) {
	if _, _, err := Sample(model.NewField(1, 1, 1), nil); err == nil {
		t.Fatal("expected random source error")
	}
}
