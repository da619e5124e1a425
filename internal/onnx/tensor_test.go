package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	ten, err := NewImageTensor(make([]float32, 3*4*5), 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, ten.Shape)
	require.NoError(t, VerifyImageTensor(ten))
}

func TestNewImageTensorErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []float32
		c, h, w int
	}{
		{"nil data", nil, 3, 4, 5},
		{"too short", make([]float32, 10), 3, 4, 5},
		{"too long", make([]float32, 100), 3, 4, 5},
		{"zero dim", make([]float32, 0), 3, 0, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImageTensor(tt.data, tt.c, tt.h, tt.w)
			assert.Error(t, err)
		})
	}
}

func TestVerifyImageTensor_Mismatch(t *testing.T) {
	err := VerifyImageTensor(Tensor{Data: make([]float32, 5), Shape: []int64{1, 3, 2, 2}})
	assert.Error(t, err)
	assert.Error(t, ValidateNCHW([]int64{1, 3, 2}))
	assert.Error(t, ValidateNCHW([]int64{1, 3, -2, 2}))
}

func TestTensorEqual(t *testing.T) {
	a := Tensor{Data: []float32{1, 2}, Shape: []int64{1, 1, 1, 2}}
	b := Tensor{Data: []float32{1, 2}, Shape: []int64{1, 1, 1, 2}}
	assert.True(t, a.Equal(b))
	b.Data[1] = 3
	assert.False(t, a.Equal(b))
	assert.False(t, a.Equal(Tensor{Data: []float32{1, 2}, Shape: []int64{1, 1, 2, 1}}))
}

func TestTokenShape(t *testing.T) {
	assert.Equal(t, []int64{7, 1}, TokenShape(7))
}

func TestStats(t *testing.T) {
	lo, hi, mean := Stats([]float32{0, 0.5, 1})
	assert.InDelta(t, 0, lo, 1e-6)
	assert.InDelta(t, 1, hi, 1e-6)
	assert.InDelta(t, 0.5, mean, 1e-6)

	lo, hi, mean = Stats(nil)
	assert.Zero(t, lo+hi+mean)
}
