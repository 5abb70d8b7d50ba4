package trainer

import (
	"math/rand"

	"pixelppo/internal/nn"
)

// NewReferenceNetworks builds the linear reference approximators for inputs
// with the given channel count.
func NewReferenceNetworks(channels int, rates LearningRates, rng *rand.Rand) (Networks, error) {
	policy, err := nn.NewPixelPolicy(channels, nn.DefaultOptimizer(rates.Policy), rng)
	if err != nil {
		return Networks{}, err
	}
	// The critic sees the input stacked with its target mask.
	critic, err := nn.NewMomentCritic(channels+1, nn.DefaultOptimizer(rates.Critic), rng)
	if err != nil {
		return Networks{}, err
	}
	disc, err := nn.NewPairDiscriminator(channels, nn.DefaultOptimizer(rates.Discriminator), rng)
	if err != nil {
		return Networks{}, err
	}
	return Networks{Policy: policy, Critic: critic, Discriminator: disc}, nil
}
