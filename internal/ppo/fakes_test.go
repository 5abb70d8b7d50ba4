package ppo

import (
	"math/rand"

	"pixelppo/internal/dist"
	"pixelppo/internal/model"
)

// fakePolicy returns a fixed probability for every element and records the
// gradients it is asked to apply.
type fakePolicy struct {
	prob    float64
	applied [][]model.Field
}

func (p *fakePolicy) Predict(inputs []model.Field) ([]model.Field, error) {
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		f := model.NewField(1, in.Height, in.Width)
		for j := range f.Data {
			f.Data[j] = p.prob
		}
		out[i] = f
	}
	return out, nil
}

func (p *fakePolicy) ApplyGradient(_ []model.Field, grads []model.Field) error {
	copied := make([]model.Field, len(grads))
	for i, g := range grads {
		copied[i] = g.Clone()
	}
	p.applied = append(p.applied, copied)
	return nil
}

func (p *fakePolicy) SampleAction(probs model.Field, rng *rand.Rand) (model.Field, model.Field, error) {
	return dist.Sample(probs, rng)
}

// fakeScorer outputs score(input) per input; InputGradient broadcasts the
// incoming output gradient over every element.
type fakeScorer struct {
	score     func(model.Field) float64
	inputs    [][]model.Field
	applied   [][]model.Field
	gradCalls int
}

func (s *fakeScorer) Predict(inputs []model.Field) ([]model.Field, error) {
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		out[i] = scalarField(s.score(in))
	}
	return out, nil
}

func (s *fakeScorer) ApplyGradient(inputs, grads []model.Field) error {
	s.inputs = append(s.inputs, inputs)
	copied := make([]model.Field, len(grads))
	for i, g := range grads {
		copied[i] = g.Clone()
	}
	s.applied = append(s.applied, copied)
	return nil
}

func (s *fakeScorer) InputGradient(inputs, grads []model.Field) ([]model.Field, error) {
	s.gradCalls++
	out := make([]model.Field, len(inputs))
	for i, in := range inputs {
		g := model.NewField(in.Channels, in.Height, in.Width)
		for j := range g.Data {
			g.Data[j] = grads[i].Data[0]
		}
		out[i] = g
	}
	return out, nil
}

func constant(v float64) func(model.Field) float64 {
	return func(model.Field) float64 { return v }
}

func firstElement(f model.Field) float64 {
	return f.Data[0]
}

func row(values ...float64) model.Field {
	f, err := model.FieldFrom(1, 1, len(values), values)
	if err != nil {
		panic(err)
	}
	return f
}

func filled(n int, v float64) model.Field {
	f := model.NewField(1, 1, n)
	for i := range f.Data {
		f.Data[i] = v
	}
	return f
}

// transition builds a four-element transition with the given action and a
// stored log-probability of storedLogProb on every element.
func transition(seq uint64, action model.Field, storedLogProb float64) model.Transition {
	state := model.State{Input: row(0.1, -0.2, 0.3, 0.4), Target: row(1, 1, 0, 0)}
	return model.Transition{
		Seq:       seq,
		State:     state,
		NextState: state,
		Action:    action,
		Reward:    row(1, -1, 0.25, -0.25),
		LogProb:   filled(action.Len(), storedLogProb),
	}
}
