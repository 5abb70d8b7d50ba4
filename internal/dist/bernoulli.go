// Package dist holds the per-element Bernoulli distribution the policy acts
// through. Probabilities are clamped to [Epsilon, 1-Epsilon] before logs.
package dist

import (
	"fmt"
	"math"
	"math/rand"

	"pixelppo/internal/model"
)

const Epsilon = 1e-6

func clamp(p float64) float64 {
	if p < Epsilon {
		return Epsilon
	}
	if p > 1-Epsilon {
		return 1 - Epsilon
	}
	return p
}

// Sample draws a binary action for every element of probs and returns it
// with its log-density.
func Sample(probs model.Field, rng *rand.Rand) (model.Field, model.Field, error) {
	if rng == nil {
		return model.Field{}, model.Field{}, fmt.Errorf("random source is required")
	}
	action := model.NewField(probs.Channels, probs.Height, probs.Width)
	logProb := model.NewField(probs.Channels, probs.Height, probs.Width)
	for i, p := range probs.Data {
		if math.IsNaN(p) {
			return model.Field{}, model.Field{}, fmt.Errorf("probability %d is NaN", i)
		}
		p = clamp(p)
		if rng.Float64() < p {
			action.Data[i] = 1
			logProb.Data[i] = math.Log(p)
		} else {
			logProb.Data[i] = math.Log(1 - p)
		}
	}
	return action, logProb, nil
}

// LogProb evaluates log P(action | probs) element-wise.
func LogProb(probs, action model.Field) (model.Field, error) {
	if !probs.SameShape(action) {
		return model.Field{}, fmt.Errorf("%w: probs vs action", model.ErrShapeMismatch)
	}
	out := model.NewField(probs.Channels, probs.Height, probs.Width)
	for i, p := range probs.Data {
		p = clamp(p)
		if action.Data[i] >= 0.5 {
			out.Data[i] = math.Log(p)
		} else {
			out.Data[i] = math.Log(1 - p)
		}
	}
	return out, nil
}

// LogProbGrad is d log P(a|p) / dp for a single element.
func LogProbGrad(p, a float64) float64 {
	p = clamp(p)
	if a >= 0.5 {
		return 1 / p
	}
	return -1 / (1 - p)
}
