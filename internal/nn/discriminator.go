package nn

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"pixelppo/internal/model"
)

// PairDiscriminator estimates the probability that the mask channel of an
// (input, mask) stack is a ground-truth annotation.
type PairDiscriminator struct {
	channels int // input channels, excluding the mask
	head     *linearHead
}

func NewPairDiscriminator(inputChannels int, cfg OptimizerConfig, rng *rand.Rand) (*PairDiscriminator, error) {
	head, err := newLinearHead(2*inputChannels+3, "sigmoid", cfg, rng)
	if err != nil {
		return nil, err
	}
	return &PairDiscriminator{channels: inputChannels, head: head}, nil
}

func (d *PairDiscriminator) Name() string {
	return "discriminator"
}

func (d *PairDiscriminator) Predict(inputs []model.Field) ([]model.Field, error) {
	if err := checkChannels(inputs, d.channels+1); err != nil {
		return nil, err
	}
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		f := pairFeatures(in)
		_, y := d.head.forward(mat.NewDense(1, len(f), f))
		out[i] = model.Field{Channels: 1, Height: 1, Width: 1, Data: []float64{y.AtVec(0)}}
	}
	return out, nil
}

func (d *PairDiscriminator) ApplyGradient(inputs, grads []model.Field) error {
	if err := checkChannels(inputs, d.channels+1); err != nil {
		return err
	}
	if err := checkGrads(inputs, grads); err != nil {
		return err
	}
	grad := mat.NewVecDense(d.head.size(), nil)
	for i, in := range inputs {
		f := pairFeatures(in)
		d.head.accumulate(grad, mat.NewDense(1, len(f), f), grads[i].Data)
	}
	return d.head.opt.step(d.head.weights, grad.RawVector().Data)
}

// InputGradient returns dL/d(input) for every element of each stack without
// touching the parameters.
func (d *PairDiscriminator) InputGradient(inputs, grads []model.Field) ([]model.Field, error) {
	if err := checkChannels(inputs, d.channels+1); err != nil {
		return nil, err
	}
	if err := checkGrads(inputs, grads); err != nil {
		return nil, err
	}
	c := d.channels
	w := d.head.weights.RawVector().Data
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		f := pairFeatures(in)
		scratch := mat.NewVecDense(d.head.size(), nil)
		dz := d.head.accumulate(scratch, mat.NewDense(1, len(f), f), grads[i].Data).AtVec(0)

		plane := in.Plane()
		n := float64(plane)
		g := model.NewField(in.Channels, in.Height, in.Width)
		mask := in.Data[c*plane:]
		for j, m := range mask {
			dm := w[c] + 2*w[2*c+1]*m
			for ch := 0; ch < c; ch++ {
				x := in.Data[ch*plane+j]
				g.Data[ch*plane+j] = dz * (w[ch] + w[c+1+ch]*m) / n
				dm += w[c+1+ch] * x
			}
			g.Data[c*plane+j] = dz * dm / n
		}
		out[i] = g
	}
	return out, nil
}

func (d *PairDiscriminator) Parameters() []float64 {
	return d.head.parameters()
}

func (d *PairDiscriminator) SetParameters(values []float64) error {
	return d.head.setParameters(values)
}

func (d *PairDiscriminator) OptimizerState() model.OptimizerState {
	return d.head.opt.state()
}

func (d *PairDiscriminator) SetOptimizerState(state model.OptimizerState) error {
	return d.head.opt.setState(state)
}
