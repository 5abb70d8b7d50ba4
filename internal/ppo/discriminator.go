package ppo

import (
	"errors"
	"fmt"

	"pixelppo/internal/model"
)

// DiscriminatorEngine fits real (input, target) pairs to 1 and detached
// (input, action) pairs to 0.
type DiscriminatorEngine struct {
	Discriminator Discriminator
}

func (e DiscriminatorEngine) Update(batch []model.Transition) (float64, error) {
	if len(batch) == 0 {
		return 0, ErrEmptyBatch
	}
	if e.Discriminator == nil {
		return 0, errors.New("discriminator is required")
	}

	// Stack copies, so the fake half holds plain values with no link back to
	// the policy.
	pairs := make([]model.Field, 0, 2*len(batch))
	labels := make([]float64, 0, 2*len(batch))
	for _, t := range batch {
		genuine, err := model.Stack(t.State.Input, t.State.Target)
		if err != nil {
			return 0, fmt.Errorf("transition %d: %w", t.Seq, err)
		}
		pairs = append(pairs, genuine)
		labels = append(labels, 1)
	}
	for _, t := range batch {
		fake, err := model.Stack(t.State.Input, t.Action)
		if err != nil {
			return 0, fmt.Errorf("transition %d: %w", t.Seq, err)
		}
		pairs = append(pairs, fake)
		labels = append(labels, 0)
	}

	out, err := e.Discriminator.Predict(pairs)
	if err != nil {
		return 0, fmt.Errorf("discriminator predict: %w", err)
	}
	scores, err := scalars(out, "discriminator")
	if err != nil {
		return 0, err
	}
	if len(scores) != len(pairs) {
		return 0, fmt.Errorf("%w: discriminator returned %d scores for %d pairs", ErrBatchLength, len(scores), len(pairs))
	}

	n := float64(len(pairs))
	var loss float64
	grads := make([]model.Field, len(scores))
	for i, d := range scores {
		loss += BinaryCrossEntropy(d, labels[i])
		grads[i] = scalarField(binaryCrossEntropyGrad(d, labels[i]) / n)
	}
	loss /= n

	if err := checkFinite("discriminator loss", loss); err != nil {
		return 0, err
	}
	if err := checkFiniteFields("discriminator gradient", grads); err != nil {
		return 0, err
	}
	if err := e.Discriminator.ApplyGradient(pairs, grads); err != nil {
		return 0, fmt.Errorf("discriminator apply gradient: %w", err)
	}
	return loss, nil
}
