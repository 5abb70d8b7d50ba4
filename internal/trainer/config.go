package trainer

import (
	"errors"
	"fmt"
	"math"

	"pixelppo/internal/ppo"
)

var ErrInvalidConfig = errors.New("invalid trainer config")

type LearningRates struct {
	Policy        float64 `json:"policy"`
	Critic        float64 `json:"critic"`
	Discriminator float64 `json:"discriminator"`
}

type Config struct {
	Capacity              int           `json:"capacity"`
	Discount              float64       `json:"discount"`
	ClipEpsilon           float64       `json:"clip_epsilon"`
	AdversarialLossWeight float64       `json:"adversarial_loss_weight"`
	LearningRates         LearningRates `json:"learning_rates"`
	BatchSize             int           `json:"batch_size"`
	PPOEpochs             int           `json:"ppo_epochs"`
	MinorityBonus         float64       `json:"minority_bonus"`
	MajorityBonus         float64       `json:"majority_bonus"`
	SamplesPerStep        int           `json:"samples_per_step"`
	Seed                  int64         `json:"seed"`
}

func DefaultConfig() Config {
	return Config{
		Capacity:              64,
		Discount:              0.99,
		ClipEpsilon:           0.2,
		AdversarialLossWeight: 0.1,
		LearningRates:         LearningRates{Policy: 0.01, Critic: 0.01, Discriminator: 0.005},
		BatchSize:             16,
		PPOEpochs:             4,
		MinorityBonus:         1.0,
		MajorityBonus:         0.01,
		SamplesPerStep:        1,
		Seed:                  1,
	}
}

func (c Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be > 0, got %d", c.Capacity)
	}
	if err := ppo.ValidateDiscount(c.Discount); err != nil {
		return err
	}
	if !(c.ClipEpsilon > 0) || math.IsInf(c.ClipEpsilon, 0) {
		return fmt.Errorf("clip epsilon must be > 0, got %v", c.ClipEpsilon)
	}
	if c.AdversarialLossWeight < 0 || math.IsInf(c.AdversarialLossWeight, 0) || math.IsNaN(c.AdversarialLossWeight) {
		return fmt.Errorf("adversarial loss weight must be finite and >= 0, got %v", c.AdversarialLossWeight)
	}
	for name, lr := range map[string]float64{
		"policy":        c.LearningRates.Policy,
		"critic":        c.LearningRates.Critic,
		"discriminator": c.LearningRates.Discriminator,
	} {
		if !(lr > 0) || math.IsInf(lr, 0) {
			return fmt.Errorf("%s learning rate must be > 0, got %v", name, lr)
		}
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be > 0, got %d", c.BatchSize)
	}
	if c.BatchSize > c.Capacity {
		return fmt.Errorf("batch size %d exceeds capacity %d", c.BatchSize, c.Capacity)
	}
	if c.PPOEpochs <= 0 {
		return fmt.Errorf("ppo epochs must be > 0, got %d", c.PPOEpochs)
	}
	if c.MinorityBonus < 0 || c.MajorityBonus < 0 {
		return errors.New("reward bonuses must be >= 0")
	}
	if c.SamplesPerStep <= 0 {
		return fmt.Errorf("samples per step must be > 0, got %d", c.SamplesPerStep)
	}
	return nil
}
