package ppo

import (
	"errors"
	"math"
	"testing"

	"pixelppo/internal/model"
)

func TestAdvantageScenario(t *testing.T) {
	got := Advantage(0.5, 0.99, 0.2, 0.4)
	if math.Abs(got-0.696) > 1e-12 {
		t.Fatalf("advantage=%.15f want 0.696", got)
	}
}

func TestAdvantageDiscountExtremes(t *testing.T) {
	if got := Advantage(0.3, 0, 0.1, 99); math.Abs(got-0.2) > 1e-12 {
		t.Fatalf("gamma=0 advantage=%f want 0.2", got)
	}
	gamma := 0.999999
	want := 1.5 + gamma*(-2.0) - 0.75
	if got := Advantage(1.5, gamma, 0.75, -2.0); got != want {
		t.Fatalf("gamma~1 advantage=%f want %f", got, want)
	}
}

func TestEstimatorUsesCriticWithoutUpdatingIt(t *testing.T) {
	critic := &fakeScorer{score: firstElement}
	tr := transition(1, row(1, 0, 0, 1), math.Log(0.5))
	tr.State.Input = row(0.2, 0, 0, 0)
	tr.NextState = model.State{Input: row(0.4, 0, 0, 0), Target: tr.State.Target}
	tr.Reward = filled(4, 0.5)

	out, err := AdvantageEstimator{Critic: critic, Gamma: 0.99}.Estimate([]model.Transition{tr})
	if err != nil {
		t.Fatalf("estimate: %v", err)
	}
	if math.Abs(out.Advantage[0]-0.696) > 1e-12 {
		t.Fatalf("advantage=%f want 0.696", out.Advantage[0])
	}
	if math.Abs(out.Target[0]-0.896) > 1e-12 || out.MeanReward[0] != 0.5 {
		t.Fatalf("unexpected target/reward: %+v", out)
	}
	if len(critic.applied) != 0 {
		t.Fatal("advantage estimation must not step the critic")
	}
}

func TestEstimatorEmptyBatch(t *testing.T) {
	_, err := AdvantageEstimator{Critic: &fakeScorer{score: constant(0)}, Gamma: 0.9}.Estimate(nil)
	if !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

func TestEstimatorRejectsDiscount(t *testing.T) {
	batch := []model.Transition{transition(1, row(1, 0, 0, 1), math.Log(0.5))}
	for _, gamma := range []float64{1, -0.1, math.NaN()} {
		if _, err := (AdvantageEstimator{Critic: &fakeScorer{score: constant(0)}, Gamma: gamma}).Estimate(batch); err == nil {
			t.Fatalf("expected discount validation error for %v", gamma)
		}
	}
}

func TestEstimatorNonFiniteCritic(t *testing.T) {
	batch := []model.Transition{transition(1, row(1, 0, 0, 1), math.Log(0.5))}
	_, err := AdvantageEstimator{Critic: &fakeScorer{score: constant(math.Inf(1))}, Gamma: 0.5}.Estimate(batch)
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}
