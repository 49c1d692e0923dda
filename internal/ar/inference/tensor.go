// Package inference runs the wheel segmentation model on throttled camera
// frames and moves the placed assembly onto the detected wheel.
package inference

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrModelUnavailable is returned when a model cannot be loaded or
	// reached.
	ErrModelUnavailable = errors.New("segmentation model unavailable")
	// ErrBadOutputShape is returned when the model output is not a
	// size x size x 2 score grid.
	ErrBadOutputShape = errors.New("unexpected model output shape")
)

// Tensor is a dense float32 tensor in row-major (NHWC) order.
type Tensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Elements returns the product of the shape dimensions.
func (t *Tensor) Elements() int {
	if t == nil || len(t.Shape) == 0 {
		return 0
	}
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Validate checks that Data matches Shape.
func (t *Tensor) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: nil tensor", ErrBadOutputShape)
	}
	for _, d := range t.Shape {
		if d <= 0 {
			return fmt.Errorf("%w: %v", ErrBadOutputShape, t.Shape)
		}
	}
	if n := t.Elements(); n != len(t.Data) {
		return fmt.Errorf("%w: shape %v wants %d values, got %d", ErrBadOutputShape, t.Shape, n, len(t.Data))
	}
	return nil
}

// Model is a segmentation network. Input is [1,size,size,3] normalised to
// [-1,1]; output is [1,size,size,2] with background and wheel scores.
type Model interface {
	Predict(ctx context.Context, in *Tensor) (*Tensor, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, in *Tensor) (*Tensor, error)

// Predict calls f.
func (f ModelFunc) Predict(ctx context.Context, in *Tensor) (*Tensor, error) {
	return f(ctx, in)
}
