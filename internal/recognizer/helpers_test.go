package recognizer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
)

// testAlphabet mirrors the layout of the shipped alphabet on a small scale.
var testAlphabet = []string{"PAD", "SOS", " ", "-", "0", "1", "А", "Б", "В", "Г", "а", "б", "в", "г", "ё", "EOS"}

func testVocabulary(t *testing.T) *Vocabulary {
	t.Helper()
	v, err := NewVocabulary(testAlphabet)
	require.NoError(t, err)
	return v
}

// scriptedModel emits script[i] as the argmax at decode step i and falls
// back to fallback once the script is exhausted.
type scriptedModel struct {
	script   []int
	fallback int
	classes  int
	failAt   int

	mu      sync.Mutex
	calls   int
	lengths []int
}

func (m *scriptedModel) Forward(_ context.Context, _ onnx.Tensor, tokens []int64) (Logits, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	step := len(tokens) - 1
	m.calls++
	m.lengths = append(m.lengths, len(tokens))
	if m.failAt > 0 && step+1 == m.failAt {
		return Logits{}, errors.New("scripted failure")
	}
	next := m.fallback
	if step < len(m.script) {
		next = m.script[step]
	}
	data := make([]float32, len(tokens)*m.classes)
	// Earlier positions favor index 0 so only the last row decides.
	for p := range len(tokens) - 1 {
		data[p*m.classes] = 10
	}
	data[step*m.classes+next] = 5
	return Logits{Data: data, Steps: len(tokens), Classes: m.classes}, nil
}

// pixelModel picks a class from the image content alone, then ends.
type pixelModel struct {
	classes int
	eos     int
}

func (m *pixelModel) Forward(_ context.Context, src onnx.Tensor, tokens []int64) (Logits, error) {
	var sum float64
	for _, v := range src.Data {
		sum += float64(v)
	}
	next := int(sum)%(m.classes-4) + 2
	if len(tokens) > 3 {
		next = m.eos
	}
	data := make([]float32, len(tokens)*m.classes)
	data[(len(tokens)-1)*m.classes+next] = 1
	return Logits{Data: data, Steps: len(tokens), Classes: m.classes}, nil
}

func writeHparams(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func alphabetJSON(tokens []string) string {
	s := "["
	for i, tok := range tokens {
		if i > 0 {
			s += ","
		}
		s += fmt.Sprintf("%q", tok)
	}
	return s + "]"
}
