package recognizer

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
)

func blankTensor(t *testing.T) onnx.Tensor {
	t.Helper()
	ten, err := onnx.NewImageTensor(make([]float32, 3*4*4), 3, 4, 4)
	require.NoError(t, err)
	return ten
}

func TestNewDecoder_Validation(t *testing.T) {
	v := testVocabulary(t)
	_, err := NewDecoder(nil, v, 10)
	assert.Error(t, err)
	_, err = NewDecoder(&scriptedModel{classes: v.Size()}, nil, 10)
	assert.Error(t, err)

	d, err := NewDecoder(&scriptedModel{classes: v.Size()}, v, 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSteps, d.MaxSteps())
}

func TestDecoder_StopsAtEOS(t *testing.T) {
	v := testVocabulary(t)
	m := &scriptedModel{script: []int{8, 13, 10, v.EOS(), 6}, fallback: 6, classes: v.Size()}
	d, err := NewDecoder(m, v, DefaultMaxSteps)
	require.NoError(t, err)

	tr, err := d.Decode(context.Background(), blankTensor(t))
	require.NoError(t, err)
	assert.Equal(t, "Вга", tr.Text)
	assert.True(t, tr.Terminated)
	assert.Equal(t, 4, tr.Steps)
	assert.Equal(t, []int{8, 13, 10, v.EOS()}, tr.Indices)
	// One full forward pass per step over the growing sequence.
	assert.Equal(t, 4, m.calls)
	assert.Equal(t, []int{1, 2, 3, 4}, m.lengths)
}

func TestDecoder_ImmediateEOS(t *testing.T) {
	v := testVocabulary(t)
	d, _ := NewDecoder(&scriptedModel{script: []int{v.EOS()}, classes: v.Size()}, v, DefaultMaxSteps)
	tr, err := d.Decode(context.Background(), blankTensor(t))
	require.NoError(t, err)
	assert.Empty(t, tr.Text)
	assert.True(t, tr.Terminated)
	assert.Equal(t, 1, tr.Steps)
}

func TestDecoder_OverrunKeepsFullSequence(t *testing.T) {
	v := testVocabulary(t)
	m := &scriptedModel{fallback: 6, classes: v.Size()}
	d, _ := NewDecoder(m, v, DefaultMaxSteps)

	tr, err := d.Decode(context.Background(), blankTensor(t))
	require.NoError(t, err)
	assert.False(t, tr.Terminated)
	assert.Equal(t, DefaultMaxSteps, tr.Steps)
	assert.Len(t, tr.Indices, DefaultMaxSteps)
	assert.Equal(t, DefaultMaxSteps, len([]rune(tr.Text)))
	assert.Equal(t, DefaultMaxSteps, m.calls)
}

func TestDecoder_ModelErrorIsWrapped(t *testing.T) {
	v := testVocabulary(t)
	d, _ := NewDecoder(&scriptedModel{fallback: 6, classes: v.Size(), failAt: 3}, v, DefaultMaxSteps)
	_, err := d.Decode(context.Background(), blankTensor(t))
	assert.ErrorContains(t, err, "decode step 2")
	assert.ErrorContains(t, err, "scripted failure")
}

func TestDecoder_IndexOutsideVocabulary(t *testing.T) {
	v := testVocabulary(t)
	d, _ := NewDecoder(&scriptedModel{fallback: v.Size() + 2, classes: v.Size() + 5}, v, DefaultMaxSteps)
	_, err := d.Decode(context.Background(), blankTensor(t))
	assert.ErrorContains(t, err, "outside vocabulary")
}

func TestDecoder_CanceledContext(t *testing.T) {
	v := testVocabulary(t)
	d, _ := NewDecoder(&scriptedModel{fallback: 6, classes: v.Size()}, v, DefaultMaxSteps)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Decode(ctx, blankTensor(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecoder_TiesGoToLowestIndex(t *testing.T) {
	v := testVocabulary(t)
	m := modelFunc(func(tokens []int64) Logits {
		data := make([]float32, len(tokens)*v.Size())
		row := data[(len(tokens)-1)*v.Size():]
		if len(tokens) > 1 {
			row[v.EOS()] = 1
		} else {
			row[7], row[9] = 3, 3
		}
		return Logits{Data: data, Steps: len(tokens), Classes: v.Size()}
	})
	d, _ := NewDecoder(m, v, DefaultMaxSteps)
	tr, err := d.Decode(context.Background(), blankTensor(t))
	require.NoError(t, err)
	assert.Equal(t, "Б", tr.Text)
}

type modelFunc func(tokens []int64) Logits

func (f modelFunc) Forward(_ context.Context, _ onnx.Tensor, tokens []int64) (Logits, error) {
	return f(tokens), nil
}

func TestDecoder_Properties(t *testing.T) {
	v := testVocabulary(t)
	properties := gopter.NewProperties(nil)

	properties.Property("never more than the step cap and deterministic", prop.ForAll(
		func(script []int, maxSteps int) bool {
			m := &scriptedModel{script: script, fallback: 2, classes: v.Size()}
			d, err := NewDecoder(m, v, maxSteps)
			if err != nil {
				return false
			}
			src := blankTensor(t)
			a, err := d.Decode(context.Background(), src)
			if err != nil {
				return false
			}
			b, err := d.Decode(context.Background(), src)
			if err != nil {
				return false
			}
			if a.Steps > maxSteps || len(a.Indices) > maxSteps {
				return false
			}
			return a.Text == b.Text && a.Steps == b.Steps && a.Terminated == b.Terminated
		},
		gen.SliceOf(gen.IntRange(0, len(testAlphabet)-1)),
		gen.IntRange(1, 120),
	))

	properties.Property("image-driven model is deterministic per tensor", prop.ForAll(
		func(fill float64) bool {
			m := &pixelModel{classes: v.Size(), eos: v.EOS()}
			d, _ := NewDecoder(m, v, DefaultMaxSteps)
			data := make([]float32, 3*4*4)
			for i := range data {
				data[i] = float32(fill)
			}
			src, _ := onnx.NewImageTensor(data, 3, 4, 4)
			a, errA := d.Decode(context.Background(), src)
			b, errB := d.Decode(context.Background(), src)
			return errA == nil && errB == nil && a.Text == b.Text && a.Terminated
		},
		gen.Float64Range(0, 1),
	))
	properties.TestingRun(t)
}
