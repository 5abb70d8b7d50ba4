package dataset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"pixelppo/internal/model"
)

// SyntheticConfig describes an imbalanced segmentation toy set: one bright
// disk per image over Gaussian noise.
type SyntheticConfig struct {
	Samples            int     `json:"samples"`
	Channels           int     `json:"channels"`
	Height             int     `json:"height"`
	Width              int     `json:"width"`
	ForegroundFraction float64 `json:"foreground_fraction"`
	Noise              float64 `json:"noise"`
	Seed               int64   `json:"seed"`
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Samples:            64,
		Channels:           1,
		Height:             16,
		Width:              16,
		ForegroundFraction: 0.05,
		Noise:              0.5,
		Seed:               1,
	}
}

func (c SyntheticConfig) Validate() error {
	if c.Samples <= 0 {
		return errors.New("samples must be > 0")
	}
	if c.Channels <= 0 {
		return errors.New("channels must be > 0")
	}
	if c.Height <= 0 || c.Width <= 0 {
		return errors.New("height and width must be > 0")
	}
	if c.ForegroundFraction <= 0 || c.ForegroundFraction >= 1 {
		return errors.New("foreground fraction must be in (0,1)")
	}
	if c.Noise < 0 {
		return errors.New("noise must be >= 0")
	}
	return nil
}

// Synthetic generates sample i from Seed+i, so every epoch replays the same
// images.
type Synthetic struct {
	cfg SyntheticConfig
	pos int
}

func NewSynthetic(cfg SyntheticConfig) (*Synthetic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("synthetic source: %w", err)
	}
	return &Synthetic{cfg: cfg}, nil
}

func (s *Synthetic) Name() string {
	return "synthetic"
}

func (s *Synthetic) Next(ctx context.Context) (model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return model.Sample{}, err
	}
	if s.pos >= s.cfg.Samples {
		return model.Sample{}, io.EOF
	}
	sample := s.generate(s.pos)
	s.pos++
	return sample, nil
}

func (s *Synthetic) Reset(_ context.Context) error {
	s.pos = 0
	return nil
}

func (s *Synthetic) generate(index int) model.Sample {
	cfg := s.cfg
	rng := rand.New(rand.NewSource(cfg.Seed + int64(index)))
	h, w := cfg.Height, cfg.Width

	radius := math.Max(0.5, math.Sqrt(cfg.ForegroundFraction*float64(h*w)/math.Pi))
	cy := radius + rng.Float64()*math.Max(0, float64(h)-2*radius)
	cx := radius + rng.Float64()*math.Max(0, float64(w)-2*radius)

	target := model.NewField(1, h, w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dy, dx := float64(y)+0.5-cy, float64(x)+0.5-cx
			if dy*dy+dx*dx <= radius*radius {
				target.Data[y*w+x] = 1
			}
		}
	}

	input := model.NewField(cfg.Channels, h, w)
	plane := h * w
	for c := 0; c < cfg.Channels; c++ {
		contrast := 1 + 0.5*float64(c)
		for j := 0; j < plane; j++ {
			input.Data[c*plane+j] = contrast*target.Data[j] + cfg.Noise*rng.NormFloat64()
		}
	}
	Normalize(input)
	return model.Sample{Input: input, Target: target}
}

// Normalize z-scores each channel in place. Constant channels are centred.
func Normalize(f model.Field) {
	plane := f.Plane()
	for c := 0; c < f.Channels; c++ {
		values := f.Data[c*plane : (c+1)*plane]
		mean, std := stat.MeanStdDev(values, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		for i := range values {
			values[i] = (values[i] - mean) / std
		}
	}
}
