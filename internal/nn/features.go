package nn

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"pixelppo/internal/model"
)

// pixelFeatures builds one row per pixel: raw channel values, their 3x3 box
// means, then a constant bias term.
func pixelFeatures(input model.Field) *mat.Dense {
	c, h, w := input.Channels, input.Height, input.Width
	plane := h * w
	cols := 2*c + 1
	data := make([]float64, plane*cols)
	for ch := 0; ch < c; ch++ {
		base := input.Data[ch*plane : (ch+1)*plane]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var sum float64
				var n int
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						yy, xx := y+dy, x+dx
						if yy < 0 || yy >= h || xx < 0 || xx >= w {
							continue
						}
						sum += base[yy*w+xx]
						n++
					}
				}
				row := (y*w + x) * cols
				data[row+ch] = base[y*w+x]
				data[row+c+ch] = sum / float64(n)
			}
		}
	}
	for p := 0; p < plane; p++ {
		data[p*cols+cols-1] = 1
	}
	return mat.NewDense(plane, cols, data)
}

// momentFeatures returns per-channel means and mean squares plus a bias.
func momentFeatures(state model.Field) []float64 {
	plane := state.Plane()
	out := make([]float64, 2*state.Channels+1)
	for ch := 0; ch < state.Channels; ch++ {
		var sum, sq float64
		for _, v := range state.Data[ch*plane : (ch+1)*plane] {
			sum += v
			sq += v * v
		}
		out[ch] = sum / float64(plane)
		out[state.Channels+ch] = sq / float64(plane)
	}
	out[len(out)-1] = 1
	return out
}

// pairFeatures scores an (input, mask) stack whose last channel is the mask:
// input means, mask mean, input-times-mask means, mask mean square, bias.
func pairFeatures(pair model.Field) []float64 {
	c := pair.Channels - 1
	plane := pair.Plane()
	mask := pair.Data[c*plane:]
	out := make([]float64, 2*c+3)
	n := float64(plane)
	for j, m := range mask {
		out[c] += m / n
		out[2*c+1] += m * m / n
		for ch := 0; ch < c; ch++ {
			x := pair.Data[ch*plane+j]
			out[ch] += x / n
			out[c+1+ch] += x * m / n
		}
	}
	out[len(out)-1] = 1
	return out
}

func checkChannels(inputs []model.Field, channels int) error {
	for i, in := range inputs {
		if in.Channels != channels {
			return fmt.Errorf("%w: input %d has %d channels, want %d", model.ErrShapeMismatch, i, in.Channels, channels)
		}
		if in.Len() != in.Channels*in.Plane() || in.Plane() == 0 {
			return fmt.Errorf("%w: input %d is malformed", model.ErrShapeMismatch, i)
		}
	}
	return nil
}

func checkGrads(inputs, grads []model.Field) error {
	if len(inputs) != len(grads) {
		return fmt.Errorf("got %d gradients for %d inputs", len(grads), len(inputs))
	}
	return nil
}
