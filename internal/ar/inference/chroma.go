package inference

import (
	"context"
	"fmt"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// ChromaModel is an on-device fallback segmenter. A pixel scores as wheel
// when its CIE Lab distance to Key is within Threshold.
type ChromaModel struct {
	Key       colorful.Color
	Threshold float64
}

// NewChromaModel parses a hex key color.
func NewChromaModel(keyHex string, threshold float64) (*ChromaModel, error) {
	key, err := colorful.Hex(keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid chroma key %q: %v", ErrModelUnavailable, keyHex, err)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("%w: chroma threshold must be positive, got %f", ErrModelUnavailable, threshold)
	}
	return &ChromaModel{Key: key, Threshold: threshold}, nil
}

// Predict implements Model.
func (m *ChromaModel) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if len(in.Shape) != 4 || in.Shape[0] != 1 || in.Shape[3] != 3 {
		return nil, fmt.Errorf("%w: input %v, want [1 h w 3]", ErrBadOutputShape, in.Shape)
	}
	h, w := in.Shape[1], in.Shape[2]
	out := &Tensor{Shape: []int{1, h, w, 2}, Data: make([]float32, h*w*2)}

	// frames are mostly flat color; memoise distances per 8-bit triple
	cache := make(map[[3]uint8]float32)
	for y := 0; y < h; y++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for x := 0; x < w; x++ {
			p := (y*w + x) * 3
			var key [3]uint8
			for c := 0; c < 3; c++ {
				v := in.Data[p+c]*pixelStd + pixelMean
				key[c] = uint8(min(max(v+0.5, 0), 255))
			}
			d, ok := cache[key]
			if !ok {
				px := colorful.Color{R: float64(key[0]) / 255, G: float64(key[1]) / 255, B: float64(key[2]) / 255}
				d = float32(px.DistanceLab(m.Key))
				cache[key] = d
			}
			o := (y*w + x) * 2
			out.Data[o] = d
			out.Data[o+1] = float32(m.Threshold)
		}
	}
	return out, nil
}
