// Package reward scores a sampled mask against the ground truth with
// class-asymmetric bonuses so that foreground correctness dominates.
package reward

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"pixelppo/internal/model"
)

const (
	DefaultMinorityBonus = 1.0
	DefaultMajorityBonus = 0.01
)

type Shaper struct {
	MinorityBonus float64
	MajorityBonus float64
}

func DefaultShaper() Shaper {
	return Shaper{MinorityBonus: DefaultMinorityBonus, MajorityBonus: DefaultMajorityBonus}
}

func (s Shaper) Validate() error {
	if s.MinorityBonus < 0 {
		return errors.New("minority bonus must be >= 0")
	}
	if s.MajorityBonus < 0 {
		return errors.New("majority bonus must be >= 0")
	}
	return nil
}

// Reward returns a per-element field: +/-MinorityBonus where the target is
// foreground and +/-MajorityBonus where it is background, positive when the
// action agrees with the target.
func (s Shaper) Reward(action, target model.Field) (model.Field, error) {
	if !action.SameShape(target) {
		return model.Field{}, fmt.Errorf("%w: action %dx%dx%d target %dx%dx%d", model.ErrShapeMismatch,
			action.Channels, action.Height, action.Width, target.Channels, target.Height, target.Width)
	}
	out := model.NewField(target.Channels, target.Height, target.Width)
	for i, t := range target.Data {
		predicted := isSet(action.Data[i])
		bonus := s.MajorityBonus
		if isSet(t) {
			bonus = s.MinorityBonus
		}
		if predicted == isSet(t) {
			out.Data[i] = bonus
		} else {
			out.Data[i] = -bonus
		}
	}
	return out, nil
}

// MeanReward reduces a reward field to its per-sample scalar.
func MeanReward(field model.Field) float64 {
	if field.Len() == 0 {
		return 0
	}
	return stat.Mean(field.Data, nil)
}

func isSet(v float64) bool {
	return v >= 0.5
}
