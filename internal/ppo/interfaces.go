// Package ppo implements the update engines of the adversarial off-policy
// trainer: advantage estimation, the clipped-surrogate policy update, the
// discriminator update and the critic regression.
//
// Approximators are opaque. Engines hand them dL/d(outputs); the approximator
// backpropagates internally and steps its own optimiser.
package ppo

import (
	"math/rand"

	"pixelppo/internal/model"
)

type Approximator interface {
	Predict(inputs []model.Field) ([]model.Field, error)
	ApplyGradient(inputs, outputGrads []model.Field) error
}

// Policy outputs a per-element foreground probability field.
type Policy interface {
	Approximator
	SampleAction(probs model.Field, rng *rand.Rand) (action, logProb model.Field, err error)
}

// Discriminator scores (input, mask) stacks with the probability of being
// real, and exposes the gradient of its loss with respect to those stacks.
type Discriminator interface {
	Approximator
	InputGradient(inputs, outputGrads []model.Field) ([]model.Field, error)
}
