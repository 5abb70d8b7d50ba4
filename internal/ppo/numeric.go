package ppo

import (
	"fmt"
	"math"

	"pixelppo/internal/model"
)

const logEpsilon = 1e-7

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func checkFinite(what string, v float64) error {
	if !finite(v) {
		return fmt.Errorf("%w: %s=%v", ErrNonFinite, what, v)
	}
	return nil
}

func checkFiniteFields(what string, fields []model.Field) error {
	for i, f := range fields {
		for j, v := range f.Data {
			if !finite(v) {
				return fmt.Errorf("%w: %s[%d][%d]=%v", ErrNonFinite, what, i, j, v)
			}
		}
	}
	return nil
}

// clampProb keeps log terms of the cross-entropy finite.
func clampProb(p float64) float64 {
	return math.Min(math.Max(p, logEpsilon), 1-logEpsilon)
}

// BinaryCrossEntropy is -[y log d + (1-y) log(1-d)] for one prediction.
func BinaryCrossEntropy(d, label float64) float64 {
	d = clampProb(d)
	return -(label*math.Log(d) + (1-label)*math.Log(1-d))
}

// binaryCrossEntropyGrad is dBCE/dd; zero where the clamp is active.
func binaryCrossEntropyGrad(d, label float64) float64 {
	if d < logEpsilon || d > 1-logEpsilon {
		return 0
	}
	return -label/d + (1-label)/(1-d)
}

func scalars(fields []model.Field, what string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		if f.Len() != 1 {
			return nil, fmt.Errorf("%s output %d has %d values, want 1", what, i, f.Len())
		}
		out[i] = f.Data[0]
	}
	return out, nil
}

func scalarField(v float64) model.Field {
	return model.Field{Channels: 1, Height: 1, Width: 1, Data: []float64{v}}
}
