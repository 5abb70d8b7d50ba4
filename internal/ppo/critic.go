package ppo

import (
	"errors"
	"fmt"

	"pixelppo/internal/model"
	"pixelppo/internal/reward"
)

// CriticEngine regresses V(s) onto the detached target r̄ + γ·V(s').
type CriticEngine struct {
	Critic Approximator
	Gamma  float64
}

func (e CriticEngine) Update(batch []model.Transition) (float64, error) {
	if len(batch) == 0 {
		return 0, ErrEmptyBatch
	}
	if e.Critic == nil {
		return 0, errors.New("critic is required")
	}
	if err := ValidateDiscount(e.Gamma); err != nil {
		return 0, err
	}

	values, nextValues, err := criticValues(e.Critic, batch)
	if err != nil {
		return 0, err
	}
	states, err := StateInputs(batch)
	if err != nil {
		return 0, err
	}

	n := float64(len(batch))
	var loss float64
	grads := make([]model.Field, len(batch))
	for i, t := range batch {
		target := BootstrapTarget(reward.MeanReward(t.Reward), e.Gamma, nextValues[i])
		diff := values[i] - target
		loss += diff * diff
		grads[i] = scalarField(2 * diff / n)
	}
	loss /= n

	if err := checkFinite("critic loss", loss); err != nil {
		return 0, err
	}
	if err := checkFiniteFields("critic gradient", grads); err != nil {
		return 0, err
	}
	if err := e.Critic.ApplyGradient(states, grads); err != nil {
		return 0, fmt.Errorf("critic apply gradient: %w", err)
	}
	return loss, nil
}
