package inference

import (
	"fmt"
	"image"

	"github.com/banshee-data/carstom/internal/ar/arsession"
)

// Box is an inclusive bounding box in model pixel space.
type Box struct {
	MinX int `json:"min_x"`
	MinY int `json:"min_y"`
	MaxX int `json:"max_x"`
	MaxY int `json:"max_y"`
}

// Decode scans a [1,size,size,2] (or [size,size,2]) score grid and returns
// the bounding box of every pixel whose wheel score is at least its
// background score. found is false when no pixel qualifies.
func Decode(out *Tensor, size int) (box Box, found bool, err error) {
	if err := out.Validate(); err != nil {
		return Box{}, false, err
	}
	shape := out.Shape
	if len(shape) == 4 {
		if shape[0] != 1 {
			return Box{}, false, fmt.Errorf("%w: batch %d", ErrBadOutputShape, shape[0])
		}
		shape = shape[1:]
	}
	if len(shape) != 3 || shape[0] != size || shape[1] != size || shape[2] != 2 {
		return Box{}, false, fmt.Errorf("%w: got %v, want [1 %d %d 2]", ErrBadOutputShape, out.Shape, size, size)
	}

	box = Box{MinX: size, MinY: size, MaxX: -1, MaxY: -1}
	for y := 0; y < size; y++ {
		row := y * size * 2
		for x := 0; x < size; x++ {
			i := row + x*2
			if out.Data[i+1] < out.Data[i] {
				continue
			}
			found = true
			box.MinX = min(box.MinX, x)
			box.MaxX = max(box.MaxX, x)
			box.MinY = min(box.MinY, y)
			box.MaxY = max(box.MaxY, y)
		}
	}
	if !found {
		return Box{}, false, nil
	}
	return box, true, nil
}

// MapToView converts a model-space box back into view coordinates of the
// detection window. It returns the box center and the midpoint of its right
// edge.
func MapToView(box Box, window image.Rectangle, size int) (center, edge arsession.ScreenPoint) {
	sx := float64(window.Dx()) / float64(size)
	sy := float64(window.Dy()) / float64(size)
	midY := float64(window.Min.Y) + float64(box.MinY+box.MaxY)/2*sy
	center = arsession.ScreenPoint{
		X: float64(window.Min.X) + float64(box.MinX+box.MaxX)/2*sx,
		Y: midY,
	}
	edge = arsession.ScreenPoint{
		X: float64(window.Min.X) + float64(box.MaxX)*sx,
		Y: midY,
	}
	return center, edge
}
