package nn

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"pixelppo/internal/model"
)

func randomField(rng *rand.Rand, c, h, w int) model.Field {
	f := model.NewField(c, h, w)
	for i := range f.Data {
		f.Data[i] = rng.NormFloat64()
	}
	return f
}

func TestPairDiscriminatorInputGradientMatchesFiniteDifferences(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	disc, err := NewPairDiscriminator(2, DefaultOptimizer(0.01), rng)
	if err != nil {
		t.Fatalf("new discriminator: %v", err)
	}
	params := disc.Parameters()
	for i := range params {
		params[i] = rng.NormFloat64()
	}
	if err := disc.SetParameters(params); err != nil {
		t.Fatalf("set parameters: %v", err)
	}

	pair := randomField(rng, 3, 3, 3)
	ones := []model.Field{{Channels: 1, Height: 1, Width: 1, Data: []float64{1}}}
	grads, err := disc.InputGradient([]model.Field{pair}, ones)
	if err != nil {
		t.Fatalf("input gradient: %v", err)
	}

	const h = 1e-6
	for _, j := range []int{0, 4, 11, 18, 22, 26} {
		plus := pair.Clone()
		minus := pair.Clone()
		plus.Data[j] += h
		minus.Data[j] -= h
		up, _ := disc.Predict([]model.Field{plus})
		down, _ := disc.Predict([]model.Field{minus})
		numeric := (up[0].Data[0] - down[0].Data[0]) / (2 * h)
		if math.Abs(numeric-grads[0].Data[j]) > 1e-6 {
			t.Fatalf("element %d: analytic=%g numeric=%g", j, grads[0].Data[j], numeric)
		}
	}
}

func TestPixelPolicyDescendsCrossEntropy(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	policy, err := NewPixelPolicy(1, DefaultOptimizer(0.05), rng)
	if err != nil {
		t.Fatalf("new policy: %v", err)
	}

	target := model.NewField(1, 4, 4)
	input := model.NewField(1, 4, 4)
	for i := range target.Data {
		if i%5 == 0 {
			target.Data[i] = 1
		}
		input.Data[i] = target.Data[i]*2 - 1 + 0.05*rng.NormFloat64()
	}
	inputs := []model.Field{input}

	loss := func() float64 {
		out, err := policy.Predict(inputs)
		if err != nil {
			t.Fatalf("predict: %v", err)
		}
		var total float64
		for i, p := range out[0].Data {
			if target.Data[i] == 1 {
				total -= math.Log(p)
			} else {
				total -= math.Log(1 - p)
			}
		}
		return total / float64(len(out[0].Data))
	}

	before := loss()
	for step := 0; step < 100; step++ {
		out, _ := policy.Predict(inputs)
		grad := model.NewField(1, 4, 4)
		n := float64(grad.Len())
		for i, p := range out[0].Data {
			grad.Data[i] = (p - target.Data[i]) / (p * (1 - p)) / n
		}
		if err := policy.ApplyGradient(inputs, []model.Field{grad}); err != nil {
			t.Fatalf("apply gradient: %v", err)
		}
	}
	after := loss()
	if after >= before {
		t.Fatalf("expected loss to drop: before=%f after=%f", before, after)
	}
}

func TestMomentCriticFitsConstantTarget(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	critic, err := NewMomentCritic(2, DefaultOptimizer(0.01), rng)
	if err != nil {
		t.Fatalf("new critic: %v", err)
	}
	states := []model.Field{randomField(rng, 2, 3, 3), randomField(rng, 2, 3, 3)}
	for step := 0; step < 1000; step++ {
		out, _ := critic.Predict(states)
		grads := make([]model.Field, len(out))
		for i, v := range out {
			grads[i] = model.Field{Channels: 1, Height: 1, Width: 1, Data: []float64{v.Data[0] - 0.7}}
		}
		if err := critic.ApplyGradient(states, grads); err != nil {
			t.Fatalf("apply gradient: %v", err)
		}
	}
	out, _ := critic.Predict(states)
	for i, v := range out {
		if math.Abs(v.Data[0]-0.7) > 0.05 {
			t.Fatalf("state %d value=%f want ~0.7", i, v.Data[0])
		}
	}
}

func TestApproximatorsRejectWrongChannels(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	policy, _ := NewPixelPolicy(2, DefaultOptimizer(0.01), rng)
	if _, err := policy.Predict([]model.Field{model.NewField(1, 2, 2)}); !errors.Is(err, model.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
	disc, _ := NewPairDiscriminator(2, DefaultOptimizer(0.01), rng)
	if _, err := disc.Predict([]model.Field{model.NewField(2, 2, 2)}); !errors.Is(err, model.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
	if err := disc.ApplyGradient([]model.Field{model.NewField(3, 2, 2)}, nil); err == nil {
		t.Fatal("expected gradient count error")
	}
}

func TestParametersRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	critic, _ := NewMomentCritic(1, DefaultOptimizer(0.01), rng)
	params := critic.Parameters()
	params[0] = 3.5
	if critic.Parameters()[0] == 3.5 {
		t.Fatal("parameters alias internal weights")
	}
	if err := critic.SetParameters(params); err != nil {
		t.Fatalf("set parameters: %v", err)
	}
	if critic.Parameters()[0] != 3.5 {
		t.Fatal("parameters not applied")
	}
	if err := critic.SetParameters(params[:1]); err == nil {
		t.Fatal("expected length validation error")
	}
}

func TestOptimizerStateResumesTraining(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	states := []model.Field{randomField(rng, 1, 2, 2)}
	grads := []model.Field{{Channels: 1, Height: 1, Width: 1, Data: []float64{0.4}}}

	original, _ := NewMomentCritic(1, DefaultOptimizer(0.01), rand.New(rand.NewSource(1)))
	for i := 0; i < 5; i++ {
		if err := original.ApplyGradient(states, grads); err != nil {
			t.Fatalf("apply gradient: %v", err)
		}
	}
	saved := original.OptimizerState()
	if saved.Step != 5 {
		t.Fatalf("step=%d want 5", saved.Step)
	}

	resumed, _ := NewMomentCritic(1, DefaultOptimizer(0.01), rand.New(rand.NewSource(9)))
	if err := resumed.SetParameters(original.Parameters()); err != nil {
		t.Fatalf("set parameters: %v", err)
	}
	if err := resumed.SetOptimizerState(saved); err != nil {
		t.Fatalf("set optimizer state: %v", err)
	}
	if err := original.ApplyGradient(states, grads); err != nil {
		t.Fatalf("apply gradient: %v", err)
	}
	if err := resumed.ApplyGradient(states, grads); err != nil {
		t.Fatalf("apply gradient: %v", err)
	}
	want, got := original.Parameters(), resumed.Parameters()
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("param %d=%v want %v", i, got[i], want[i])
		}
	}

	saved.FirstMoment = saved.FirstMoment[:1]
	if err := resumed.SetOptimizerState(saved); err == nil {
		t.Fatal("expected moment length validation error")
	}
}

func TestOptimizerConfigValidate(t *testing.T) {
	if err := DefaultOptimizer(0).Validate(); err == nil {
		t.Fatal("expected learning rate error")
	}
	cfg := DefaultOptimizer(0.1)
	cfg.Beta1 = 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected beta1 error")
	}
	if _, err := NewPixelPolicy(1, DefaultOptimizer(-1), rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected constructor validation error")
	}
}
