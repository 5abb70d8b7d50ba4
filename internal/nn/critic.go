package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"pixelppo/internal/model"
)

// MomentCritic regresses a scalar state value from channel moments of the
// stacked (input, target) state.
type MomentCritic struct {
	channels int
	head     *linearHead
}

func NewMomentCritic(channels int, cfg OptimizerConfig, rng *rand.Rand) (*MomentCritic, error) {
	head, err := newLinearHead(2*channels+1, "identity", cfg, rng)
	if err != nil {
		return nil, err
	}
	return &MomentCritic{channels: channels, head: head}, nil
}

func (c *MomentCritic) Name() string {
	return "critic"
}

func (c *MomentCritic) Predict(inputs []model.Field) ([]model.Field, error) {
	if err := checkChannels(inputs, c.channels); err != nil {
		return nil, err
	}
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		f := momentFeatures(in)
		_, y := c.head.forward(mat.NewDense(1, len(f), f))
		out[i] = model.Field{Channels: 1, Height: 1, Width: 1, Data: []float64{y.AtVec(0)}}
	}
	return out, nil
}

func (c *MomentCritic) ApplyGradient(inputs, grads []model.Field) error {
	if err := checkChannels(inputs, c.channels); err != nil {
		return err
	}
	if err := checkGrads(inputs, grads); err != nil {
		return err
	}
	grad := mat.NewVecDense(c.head.size(), nil)
	for i, in := range inputs {
		f := momentFeatures(in)
		c.head.accumulate(grad, mat.NewDense(1, len(f), f), grads[i].Data)
	}
	return c.head.opt.step(c.head.weights, grad.RawVector().Data)
}

func (c *MomentCritic) Parameters() []float64 {
	return c.head.parameters()
}

func (c *MomentCritic) SetParameters(values []float64) error {
	return c.head.setParameters(values)
}

func (c *MomentCritic) OptimizerState() model.OptimizerState {
	return c.head.opt.state()
}

func (c *MomentCritic) SetOptimizerState(state model.OptimizerState) error {
	return c.head.opt.setState(state)
}
