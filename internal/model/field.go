package model

import (
	"errors"
	"fmt"
)

var ErrShapeMismatch = errors.New("field shape mismatch")

// Field is a dense (channels, height, width) array laid out channel-major.
type Field struct {
	Channels int       `json:"channels"`
	Height   int       `json:"height"`
	Width    int       `json:"width"`
	Data     []float64 `json:"data"`
}

func NewField(channels, height, width int) Field {
	return Field{
		Channels: channels,
		Height:   height,
		Width:    width,
		Data:     make([]float64, channels*height*width),
	}
}

// FieldFrom wraps data without copying.
func FieldFrom(channels, height, width int, data []float64) (Field, error) {
	if channels*height*width != len(data) {
		return Field{}, fmt.Errorf("%w: %dx%dx%d does not hold %d values", ErrShapeMismatch, channels, height, width, len(data))
	}
	return Field{Channels: channels, Height: height, Width: width, Data: data}, nil
}

func (f Field) Len() int {
	return len(f.Data)
}

// Plane is the number of elements in one channel.
func (f Field) Plane() int {
	return f.Height * f.Width
}

func (f Field) SameShape(other Field) bool {
	return f.Channels == other.Channels && f.Height == other.Height && f.Width == other.Width
}

func (f Field) Clone() Field {
	out := f
	out.Data = append([]float64(nil), f.Data...)
	return out
}

// Channel returns a copy of channel c as a single-channel field.
func (f Field) Channel(c int) Field {
	plane := f.Plane()
	out := NewField(1, f.Height, f.Width)
	copy(out.Data, f.Data[c*plane:(c+1)*plane])
	return out
}

// Stack concatenates b's channels after a's.
func Stack(a, b Field) (Field, error) {
	if a.Height != b.Height || a.Width != b.Width {
		return Field{}, fmt.Errorf("%w: stack %dx%d with %dx%d", ErrShapeMismatch, a.Height, a.Width, b.Height, b.Width)
	}
	out := Field{
		Channels: a.Channels + b.Channels,
		Height:   a.Height,
		Width:    a.Width,
		Data:     make([]float64, 0, len(a.Data)+len(b.Data)),
	}
	out.Data = append(out.Data, a.Data...)
	out.Data = append(out.Data, b.Data...)
	return out, nil
}
