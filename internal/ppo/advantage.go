package ppo

import (
	"errors"
	"fmt"

	"pixelppo/internal/model"
	"pixelppo/internal/reward"
)

// AdvantageBatch holds per-sample scalars aligned with the minibatch. All
// values are constants for the policy update.
type AdvantageBatch struct {
	MeanReward []float64
	Value      []float64
	NextValue  []float64
	Target     []float64
	Advantage  []float64
}

func (a AdvantageBatch) Len() int {
	return len(a.Advantage)
}

// Advantage is r̄ + γ·V(s') − V(s).
func Advantage(meanReward, gamma, value, nextValue float64) float64 {
	return BootstrapTarget(meanReward, gamma, nextValue) - value
}

// BootstrapTarget is the one-step return estimate r̄ + γ·V(s').
func BootstrapTarget(meanReward, gamma, nextValue float64) float64 {
	return meanReward + gamma*nextValue
}

func ValidateDiscount(gamma float64) error {
	if !finite(gamma) || gamma < 0 || gamma >= 1 {
		return fmt.Errorf("discount must be in [0,1), got %v", gamma)
	}
	return nil
}

// StateInputs stacks each transition's state into the critic's input form.
func StateInputs(batch []model.Transition) ([]model.Field, error) {
	return stackStates(batch, func(t model.Transition) model.State { return t.State })
}

func NextStateInputs(batch []model.Transition) ([]model.Field, error) {
	return stackStates(batch, func(t model.Transition) model.State { return t.NextState })
}

func stackStates(batch []model.Transition, pick func(model.Transition) model.State) ([]model.Field, error) {
	out := make([]model.Field, len(batch))
	for i, t := range batch {
		s := pick(t)
		stacked, err := model.Stack(s.Input, s.Target)
		if err != nil {
			return nil, fmt.Errorf("transition %d: %w", t.Seq, err)
		}
		out[i] = stacked
	}
	return out, nil
}

// AdvantageEstimator queries the critic without updating it.
type AdvantageEstimator struct {
	Critic Approximator
	Gamma  float64
}

func (e AdvantageEstimator) Estimate(batch []model.Transition) (AdvantageBatch, error) {
	if len(batch) == 0 {
		return AdvantageBatch{}, ErrEmptyBatch
	}
	if e.Critic == nil {
		return AdvantageBatch{}, errors.New("critic is required")
	}
	if err := ValidateDiscount(e.Gamma); err != nil {
		return AdvantageBatch{}, err
	}

	values, nextValues, err := criticValues(e.Critic, batch)
	if err != nil {
		return AdvantageBatch{}, err
	}

	out := AdvantageBatch{
		MeanReward: make([]float64, len(batch)),
		Value:      values,
		NextValue:  nextValues,
		Target:     make([]float64, len(batch)),
		Advantage:  make([]float64, len(batch)),
	}
	for i, t := range batch {
		out.MeanReward[i] = reward.MeanReward(t.Reward)
		out.Target[i] = BootstrapTarget(out.MeanReward[i], e.Gamma, nextValues[i])
		out.Advantage[i] = out.Target[i] - values[i]
		if err := checkFinite("advantage", out.Advantage[i]); err != nil {
			return AdvantageBatch{}, err
		}
	}
	return out, nil
}

func criticValues(critic Approximator, batch []model.Transition) ([]float64, []float64, error) {
	states, err := StateInputs(batch)
	if err != nil {
		return nil, nil, err
	}
	nextStates, err := NextStateInputs(batch)
	if err != nil {
		return nil, nil, err
	}
	valueOut, err := critic.Predict(states)
	if err != nil {
		return nil, nil, fmt.Errorf("critic predict: %w", err)
	}
	nextOut, err := critic.Predict(nextStates)
	if err != nil {
		return nil, nil, fmt.Errorf("critic predict next: %w", err)
	}
	if len(valueOut) != len(batch) || len(nextOut) != len(batch) {
		return nil, nil, fmt.Errorf("%w: critic returned %d/%d values for %d states", ErrBatchLength, len(valueOut), len(nextOut), len(batch))
	}
	values, err := scalars(valueOut, "critic")
	if err != nil {
		return nil, nil, err
	}
	nextValues, err := scalars(nextOut, "critic")
	if err != nil {
		return nil, nil, err
	}
	return values, nextValues, nil
}
