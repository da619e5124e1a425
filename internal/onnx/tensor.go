package onnx

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor prepared for ONNX input.
// Data is row-major; image tensors are NCHW.
type Tensor struct {
	Data  []float32
	Shape []int64
}

// NewImageTensor builds a single-image tensor with shape [1, C, H, W].
// data must hold C*H*W values in CHW order.
func NewImageTensor(data []float32, c, h, w int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	if c <= 0 || h <= 0 || w <= 0 {
		return Tensor{}, fmt.Errorf("invalid dimensions c=%d h=%d w=%d", c, h, w)
	}
	if want := c * h * w; len(data) != want {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), want)
	}
	return Tensor{Data: data, Shape: []int64{1, int64(c), int64(h), int64(w)}}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks the data length against the NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	want := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != want {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), want, t.Shape)
	}
	return nil
}

// Equal reports whether two tensors have identical shape and data.
func (t Tensor) Equal(o Tensor) bool {
	if len(t.Shape) != len(o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// TokenShape returns the sequence-first shape [T, 1] used for decoder targets.
func TokenShape(n int) []int64 {
	return []int64{int64(n), 1}
}

// Stats computes min, max and mean for debug output.
func Stats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	lo, hi := data[0], data[0]
	var sum float64
	for _, v := range data {
		lo = min(lo, v)
		hi = max(hi, v)
		sum += float64(v)
	}
	return lo, hi, float32(sum / float64(len(data)))
}
