package inference

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"
)

// pixelMean and pixelStd normalise 8-bit channels to [-1,1].
const (
	pixelMean = 127.5
	pixelStd  = 127.5
)

// ResolveWindow returns the detection window inside bounds. An empty window
// selects the largest centred square.
func ResolveWindow(window, bounds image.Rectangle) image.Rectangle {
	if window.Empty() {
		side := min(bounds.Dx(), bounds.Dy())
		x := bounds.Min.X + (bounds.Dx()-side)/2
		y := bounds.Min.Y + (bounds.Dy()-side)/2
		return image.Rect(x, y, x+side, y+side)
	}
	return window.Intersect(bounds)
}

// Preprocess crops img to window, resizes the crop to size x size and
// returns a normalised [1,size,size,3] tensor.
func Preprocess(img image.Image, window image.Rectangle, size int) (*Tensor, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid model input size %d", size)
	}
	crop := window.Intersect(img.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("detection window %v outside frame %v", window, img.Bounds())
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)

	data := make([]float32, size*size*3)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			off := dst.PixOffset(x, y)
			base := (y*size + x) * 3
			for c := 0; c < 3; c++ {
				data[base+c] = (float32(dst.Pix[off+c]) - pixelMean) / pixelStd
			}
		}
	}
	return &Tensor{Shape: []int{1, size, size, 3}, Data: data}, nil
}
