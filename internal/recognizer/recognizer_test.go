package recognizer

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecognizer(t *testing.T, m Model) *Recognizer {
	t.Helper()
	norm, err := NewNormalizer(16, 64)
	require.NoError(t, err)
	r, err := New(m, testVocabulary(t), norm, DefaultMaxSteps)
	require.NoError(t, err)
	return r
}

func TestRecognizer_Recognize(t *testing.T) {
	v := testVocabulary(t)
	r := newTestRecognizer(t, &scriptedModel{script: []int{7, 11, v.EOS()}, classes: v.Size()})

	tr, err := r.Recognize(context.Background(), imaging.New(40, 12, color.Black))
	require.NoError(t, err)
	assert.Equal(t, "Бб", tr.Text)
	assert.True(t, tr.Terminated)
	assert.Equal(t, DefaultMaxSteps, r.MaxSteps())
	assert.Same(t, r.Vocabulary(), r.Vocabulary())
	assert.NoError(t, r.Close())
}

func TestRecognizer_EmptyCrop(t *testing.T) {
	v := testVocabulary(t)
	m := &scriptedModel{classes: v.Size()}
	r := newTestRecognizer(t, m)
	_, err := r.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 0, 5)))
	assert.ErrorIs(t, err, ErrEmptyCrop)
	assert.Zero(t, m.calls)
}

func TestRecognizer_Warmup(t *testing.T) {
	v := testVocabulary(t)
	m := &scriptedModel{script: []int{v.EOS()}, classes: v.Size()}
	r := newTestRecognizer(t, m)
	require.NoError(t, r.Warmup(context.Background(), 3))
	assert.Equal(t, 3, m.calls)
}

func TestNew_Validation(t *testing.T) {
	v := testVocabulary(t)
	_, err := New(&scriptedModel{classes: v.Size()}, v, nil, 10)
	assert.Error(t, err)
}

func TestNewRecognizer_StartupErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := NewRecognizer(Config{})
	assert.ErrorContains(t, err, "model path cannot be empty")

	_, err = NewRecognizer(Config{ModelPath: filepath.Join(dir, "missing.onnx")})
	assert.ErrorContains(t, err, "model file not found")

	weights := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(weights, []byte("x"), 0o644))
	_, err = NewRecognizer(Config{ModelPath: weights, HparamsPath: filepath.Join(dir, "none.json")})
	assert.ErrorContains(t, err, "failed to read hparams")

	dup := writeHparams(t, `{"cyrillic": ["SOS","a","a","EOS"]}`)
	_, err = NewRecognizer(Config{ModelPath: weights, HparamsPath: dup})
	assert.ErrorContains(t, err, "duplicate")
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, DefaultMaxSteps, cfg.MaxSteps)
	assert.NotEmpty(t, cfg.ModelPath)
	assert.NotEmpty(t, cfg.HparamsPath)

	dir := t.TempDir()
	cfg.UpdateModelPath(dir)
	assert.Equal(t, dir, filepath.Dir(cfg.ModelPath))
	assert.Equal(t, dir, filepath.Dir(cfg.HparamsPath))
}
