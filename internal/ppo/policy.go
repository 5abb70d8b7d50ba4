package ppo

import (
	"errors"
	"fmt"
	"math"

	"pixelppo/internal/dist"
	"pixelppo/internal/model"
)

// PolicyEngine applies the clipped-surrogate objective plus a weighted
// adversarial term to the policy. Only the policy is stepped.
type PolicyEngine struct {
	Policy                Policy
	Discriminator         Discriminator
	ClipEpsilon           float64
	AdversarialLossWeight float64
}

type PolicyResult struct {
	SurrogateLoss   float64
	AdversarialLoss float64
	TotalLoss       float64
	ClipFraction    float64
}

// ClippedSurrogate is min(r·A, clip(r, 1-ε, 1+ε)·A).
func ClippedSurrogate(ratio, advantage, eps float64) float64 {
	return math.Min(ratio*advantage, clip(ratio, 1-eps, 1+eps)*advantage)
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

func (e PolicyEngine) Update(batch []model.Transition, adv AdvantageBatch) (PolicyResult, error) {
	if len(batch) == 0 {
		return PolicyResult{}, ErrEmptyBatch
	}
	if adv.Len() != len(batch) {
		return PolicyResult{}, fmt.Errorf("%w: %d advantages for %d transitions", ErrBatchLength, adv.Len(), len(batch))
	}
	if e.Policy == nil {
		return PolicyResult{}, errors.New("policy is required")
	}
	if e.ClipEpsilon <= 0 {
		return PolicyResult{}, errors.New("clip epsilon must be > 0")
	}

	inputs := make([]model.Field, len(batch))
	for i, t := range batch {
		inputs[i] = t.State.Input
	}
	probs, err := e.Policy.Predict(inputs)
	if err != nil {
		return PolicyResult{}, fmt.Errorf("policy predict: %w", err)
	}
	if len(probs) != len(batch) {
		return PolicyResult{}, fmt.Errorf("%w: policy returned %d outputs for %d inputs", ErrBatchLength, len(probs), len(batch))
	}

	var elements int
	for i, t := range batch {
		if !probs[i].SameShape(t.Action) || !t.LogProb.SameShape(t.Action) {
			return PolicyResult{}, fmt.Errorf("%w: transition %d", model.ErrShapeMismatch, t.Seq)
		}
		elements += t.Action.Len()
	}
	n := float64(elements)
	lo, hi := 1-e.ClipEpsilon, 1+e.ClipEpsilon

	grads := make([]model.Field, len(batch))
	var surrogate float64
	var clipped int
	for i, t := range batch {
		// The ratio must compare log-probabilities of the stored action.
		newLogProb, err := dist.LogProb(probs[i], t.Action)
		if err != nil {
			return PolicyResult{}, err
		}
		a := adv.Advantage[i]
		g := model.NewField(t.Action.Channels, t.Action.Height, t.Action.Width)
		for j, p := range probs[i].Data {
			ratio := math.Exp(newLogProb.Data[j] - t.LogProb.Data[j])
			if err := checkFinite("ratio", ratio); err != nil {
				return PolicyResult{}, err
			}
			unclipped := ratio * a
			bounded := clip(ratio, lo, hi) * a
			if ratio < lo || ratio > hi {
				clipped++
			}
			surrogate += math.Min(unclipped, bounded)
			if unclipped <= bounded {
				g.Data[j] = -a / n * ratio * dist.LogProbGrad(p, t.Action.Data[j])
			}
		}
		grads[i] = g
	}
	result := PolicyResult{
		SurrogateLoss: -surrogate / n,
		ClipFraction:  float64(clipped) / n,
	}

	if e.Discriminator != nil {
		advLoss, err := e.adversarial(batch, grads)
		if err != nil {
			return PolicyResult{}, err
		}
		result.AdversarialLoss = advLoss
	} else if e.AdversarialLossWeight != 0 {
		return PolicyResult{}, errors.New("discriminator is required for a weighted adversarial term")
	}
	result.TotalLoss = result.SurrogateLoss + e.AdversarialLossWeight*result.AdversarialLoss

	if err := checkFinite("policy loss", result.TotalLoss); err != nil {
		return PolicyResult{}, err
	}
	if err := checkFiniteFields("policy gradient", grads); err != nil {
		return PolicyResult{}, err
	}
	if err := e.Policy.ApplyGradient(inputs, grads); err != nil {
		return PolicyResult{}, fmt.Errorf("policy apply gradient: %w", err)
	}
	return result, nil
}

// adversarial scores (input, action) as real and adds the weighted gradient
// of that loss onto grads. The gradient on the binary action is passed
// straight through to the probability field. With a zero weight only the
// loss is reported.
func (e PolicyEngine) adversarial(batch []model.Transition, grads []model.Field) (float64, error) {
	pairs := make([]model.Field, len(batch))
	for i, t := range batch {
		pair, err := model.Stack(t.State.Input, t.Action)
		if err != nil {
			return 0, fmt.Errorf("transition %d: %w", t.Seq, err)
		}
		pairs[i] = pair
	}
	out, err := e.Discriminator.Predict(pairs)
	if err != nil {
		return 0, fmt.Errorf("discriminator predict: %w", err)
	}
	scores, err := scalars(out, "discriminator")
	if err != nil {
		return 0, err
	}
	if len(scores) != len(batch) {
		return 0, fmt.Errorf("%w: discriminator returned %d scores for %d pairs", ErrBatchLength, len(scores), len(batch))
	}

	b := float64(len(batch))
	var loss float64
	dScores := make([]model.Field, len(scores))
	for i, d := range scores {
		loss += BinaryCrossEntropy(d, 1)
		dScores[i] = scalarField(binaryCrossEntropyGrad(d, 1) / b)
	}
	if e.AdversarialLossWeight == 0 {
		return loss / b, nil
	}
	inGrads, err := e.Discriminator.InputGradient(pairs, dScores)
	if err != nil {
		return 0, fmt.Errorf("discriminator input gradient: %w", err)
	}
	for i, g := range inGrads {
		action := g.Channel(g.Channels - 1)
		if action.Len() != grads[i].Len() {
			return 0, fmt.Errorf("%w: discriminator gradient %d", model.ErrShapeMismatch, i)
		}
		for j, v := range action.Data {
			grads[i].Data[j] += e.AdversarialLossWeight * v
		}
	}
	return loss / b, nil
}
