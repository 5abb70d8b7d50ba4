// Package dataset supplies normalised (input, mask) samples to the trainer
// through a synchronous pull interface. io.EOF marks the end of an epoch.
package dataset

import (
	"context"
	"errors"
	"io"

	"pixelppo/internal/model"
)

var ErrEmptySource = errors.New("source has no samples")

type Source interface {
	Name() string
	Next(ctx context.Context) (model.Sample, error)
	Reset(ctx context.Context) error
}

// SliceSource replays a fixed list of samples in order.
type SliceSource struct {
	name    string
	samples []model.Sample
	pos     int
}

func NewSliceSource(name string, samples []model.Sample) *SliceSource {
	return &SliceSource{name: name, samples: samples}
}

func (s *SliceSource) Name() string {
	return s.name
}

func (s *SliceSource) Next(ctx context.Context) (model.Sample, error) {
	if err := ctx.Err(); err != nil {
		return model.Sample{}, err
	}
	if s.pos >= len(s.samples) {
		return model.Sample{}, io.EOF
	}
	sample := s.samples[s.pos]
	s.pos++
	return sample, nil
}

func (s *SliceSource) Reset(_ context.Context) error {
	s.pos = 0
	return nil
}

// Pull reads up to n samples. It returns io.EOF together with any samples read
// before the epoch ended.
func Pull(ctx context.Context, src Source, n int) ([]model.Sample, error) {
	out := make([]model.Sample, 0, n)
	for len(out) < n {
		sample, err := src.Next(ctx)
		if err != nil {
			return out, err
		}
		out = append(out, sample)
	}
	return out, nil
}
