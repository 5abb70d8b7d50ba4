package nn

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// linearHead is an activated affine map over a fixed feature vector. The last
// weight is the bias; callers append a constant 1 feature.
type linearHead struct {
	weights *mat.VecDense
	opt     *adam
	act     Activation
}

func newLinearHead(features int, activation string, cfg OptimizerConfig, rng *rand.Rand) (*linearHead, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	act, err := GetActivation(activation)
	if err != nil {
		return nil, err
	}
	initial := make([]float64, features)
	for i := range initial[:features-1] {
		initial[i] = (rng.Float64()*2 - 1) * 0.05
	}
	return &linearHead{
		weights: mat.NewVecDense(features, initial),
		opt:     newAdam(cfg, features),
		act:     act,
	}, nil
}

func (h *linearHead) size() int {
	return h.weights.Len()
}

// forward returns the pre-activations and activations for every row of f.
func (h *linearHead) forward(f mat.Matrix) (*mat.VecDense, *mat.VecDense) {
	var z mat.VecDense
	z.MulVec(f, h.weights)
	y := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		y.SetVec(i, h.act.Func(z.AtVec(i)))
	}
	return &z, y
}

// accumulate adds fᵀ·(dL/dy ⊙ y') into grad and returns dL/dz.
func (h *linearHead) accumulate(grad *mat.VecDense, f mat.Matrix, dy []float64) *mat.VecDense {
	z, y := h.forward(f)
	dz := mat.NewVecDense(z.Len(), nil)
	for i := 0; i < z.Len(); i++ {
		dz.SetVec(i, dy[i]*h.act.Deriv(z.AtVec(i), y.AtVec(i)))
	}
	var contrib mat.VecDense
	contrib.MulVec(f.T(), dz)
	grad.AddVec(grad, &contrib)
	return dz
}

func (h *linearHead) parameters() []float64 {
	return append([]float64(nil), h.weights.RawVector().Data...)
}

func (h *linearHead) setParameters(values []float64) error {
	if len(values) != h.weights.Len() {
		return fmt.Errorf("expected %d parameters, got %d", h.weights.Len(), len(values))
	}
	copy(h.weights.RawVector().Data, values)
	return nil
}
