package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"pixelppo/internal/dist"
	"pixelppo/internal/model"
)

// PixelPolicy maps each pixel's local neighbourhood to a foreground
// probability through a shared logistic head.
type PixelPolicy struct {
	channels int
	head     *linearHead
}

func NewPixelPolicy(channels int, cfg OptimizerConfig, rng *rand.Rand) (*PixelPolicy, error) {
	head, err := newLinearHead(2*channels+1, "sigmoid", cfg, rng)
	if err != nil {
		return nil, err
	}
	return &PixelPolicy{channels: channels, head: head}, nil
}

func (p *PixelPolicy) Name() string {
	return "policy"
}

func (p *PixelPolicy) Predict(inputs []model.Field) ([]model.Field, error) {
	if err := checkChannels(inputs, p.channels); err != nil {
		return nil, err
	}
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		_, y := p.head.forward(pixelFeatures(in))
		out[i] = model.Field{Channels: 1, Height: in.Height, Width: in.Width, Data: y.RawVector().Data}
	}
	return out, nil
}

func (p *PixelPolicy) SampleAction(probs model.Field, rng *rand.Rand) (model.Field, model.Field, error) {
	return dist.Sample(probs, rng)
}

func (p *PixelPolicy) ApplyGradient(inputs, grads []model.Field) error {
	if err := checkChannels(inputs, p.channels); err != nil {
		return err
	}
	if err := checkGrads(inputs, grads); err != nil {
		return err
	}
	grad := mat.NewVecDense(p.head.size(), nil)
	for i, in := range inputs {
		p.head.accumulate(grad, pixelFeatures(in), grads[i].Data)
	}
	return p.head.opt.step(p.head.weights, grad.RawVector().Data)
}

func (p *PixelPolicy) Parameters() []float64 {
	return p.head.parameters()
}

func (p *PixelPolicy) SetParameters(values []float64) error {
	return p.head.setParameters(values)
}

func (p *PixelPolicy) OptimizerState() model.OptimizerState {
	return p.head.opt.state()
}

func (p *PixelPolicy) SetOptimizerState(state model.OptimizerState) error {
	return p.head.opt.setState(state)
}
