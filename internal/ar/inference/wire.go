package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// wireTensor is a Tensor in TensorFlow Serving's columnar JSON form: one
// nested array per dimension, so a [1,2,2,3] tensor is [[[[r,g,b],...]]].
type wireTensor struct {
	*Tensor
}

// MarshalJSON writes the tensor as nested arrays.
func (w wireTensor) MarshalJSON() ([]byte, error) {
	if err := w.Tensor.Validate(); err != nil {
		return nil, err
	}
	if len(w.Shape) == 0 {
		return nil, fmt.Errorf("%w: scalar tensor", ErrBadOutputShape)
	}
	var b bytes.Buffer
	b.Grow(len(w.Data) * 8)
	next := 0
	var write func(dim int)
	write = func(dim int) {
		b.WriteByte('[')
		for i := 0; i < w.Shape[dim]; i++ {
			if i > 0 {
				b.WriteByte(',')
			}
			if dim == len(w.Shape)-1 {
				b.WriteString(strconv.FormatFloat(float64(w.Data[next]), 'g', -1, 32))
				next++
				continue
			}
			write(dim + 1)
		}
		b.WriteByte(']')
	}
	write(0)
	return b.Bytes(), nil
}

// UnmarshalJSON reads nested arrays. Every array at the same depth must
// have the same length.
func (w *wireTensor) UnmarshalJSON(raw []byte) error {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	var shape []int
	for cur := v; ; {
		arr, ok := cur.([]interface{})
		if !ok {
			break
		}
		shape = append(shape, len(arr))
		if len(arr) == 0 {
			break
		}
		cur = arr[0]
	}
	if len(shape) == 0 {
		return fmt.Errorf("%w: expected nested arrays", ErrBadOutputShape)
	}
	t := &Tensor{Shape: shape}
	if n := t.Elements(); n > 0 {
		t.Data = make([]float32, 0, n)
	}
	var walk func(x interface{}, dim int) error
	walk = func(x interface{}, dim int) error {
		if dim == len(shape) {
			f, ok := x.(float64)
			if !ok {
				return fmt.Errorf("%w: non-numeric value %v", ErrBadOutputShape, x)
			}
			t.Data = append(t.Data, float32(f))
			return nil
		}
		arr, ok := x.([]interface{})
		if !ok || len(arr) != shape[dim] {
			return fmt.Errorf("%w: ragged array at depth %d", ErrBadOutputShape, dim)
		}
		for _, e := range arr {
			if err := walk(e, dim+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(v, 0); err != nil {
		return err
	}
	w.Tensor = t
	return nil
}
