package nn

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"pixelppo/internal/model"
)

type OptimizerConfig struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// GradClip bounds the L2 norm of each gradient; 0 disables clipping.
	GradClip float64
}

func DefaultOptimizer(learningRate float64) OptimizerConfig {
	return OptimizerConfig{
		LearningRate: learningRate,
		Beta1:        0.9,
		Beta2:        0.999,
		Epsilon:      1e-8,
		GradClip:     5,
	}
}

func (c OptimizerConfig) Validate() error {
	if c.LearningRate <= 0 || math.IsInf(c.LearningRate, 0) || math.IsNaN(c.LearningRate) {
		return fmt.Errorf("learning rate must be > 0, got %v", c.LearningRate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 {
		return errors.New("beta1 must be in [0,1)")
	}
	if c.Beta2 < 0 || c.Beta2 >= 1 {
		return errors.New("beta2 must be in [0,1)")
	}
	if c.Epsilon <= 0 {
		return errors.New("epsilon must be > 0")
	}
	if c.GradClip < 0 {
		return errors.New("grad clip must be >= 0")
	}
	return nil
}

type adam struct {
	cfg OptimizerConfig
	m   []float64
	v   []float64
	t   int
}

func newAdam(cfg OptimizerConfig, size int) *adam {
	return &adam{cfg: cfg, m: make([]float64, size), v: make([]float64, size)}
}

// step descends params along grad in place. grad may be modified.
func (a *adam) step(params *mat.VecDense, grad []float64) error {
	if params.Len() != len(grad) {
		return fmt.Errorf("gradient has %d values for %d parameters", len(grad), params.Len())
	}
	if a.cfg.GradClip > 0 {
		if norm := floats.Norm(grad, 2); norm > a.cfg.GradClip {
			floats.Scale(a.cfg.GradClip/norm, grad)
		}
	}

	a.t++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	b1Corr := 1 - math.Pow(b1, float64(a.t))
	b2Corr := 1 - math.Pow(b2, float64(a.t))
	data := params.RawVector().Data
	for j, g := range grad {
		a.m[j] = b1*a.m[j] + (1-b1)*g
		a.v[j] = b2*a.v[j] + (1-b2)*g*g
		mhat := a.m[j] / b1Corr
		vhat := a.v[j] / b2Corr
		data[j] -= a.cfg.LearningRate * mhat / (math.Sqrt(vhat) + a.cfg.Epsilon)
	}
	return nil
}

func (a *adam) state() model.OptimizerState {
	return model.OptimizerState{
		Step:         a.t,
		FirstMoment:  append([]float64(nil), a.m...),
		SecondMoment: append([]float64(nil), a.v...),
	}
}

func (a *adam) setState(s model.OptimizerState) error {
	if s.Step < 0 {
		return fmt.Errorf("optimizer step must be >= 0, got %d", s.Step)
	}
	if len(s.FirstMoment) != len(a.m) || len(s.SecondMoment) != len(a.v) {
		return fmt.Errorf("expected %d moments, got %d and %d", len(a.m), len(s.FirstMoment), len(s.SecondMoment))
	}
	a.t = s.Step
	copy(a.m, s.FirstMoment)
	copy(a.v, s.SecondMoment)
	return nil
}
