package recognizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
	"gonum.org/v1/gonum/floats"
)

// DefaultMaxSteps caps the number of tokens emitted per region.
const DefaultMaxSteps = 100

// Transcript is the decoded text of one region.
type Transcript struct {
	Text string `json:"text"`
	// Indices are the emitted token indices without the leading SOS,
	// including the trailing EOS when one was produced.
	Indices []int `json:"indices"`
	// Steps is the number of model invocations.
	Steps int `json:"steps"`
	// Terminated is false when the step cap was hit before EOS.
	Terminated bool `json:"terminated"`
}

// Decoder runs greedy autoregressive decoding.
type Decoder struct {
	model    Model
	vocab    *Vocabulary
	maxSteps int
}

// NewDecoder binds a model to a vocabulary. maxSteps <= 0 selects DefaultMaxSteps.
func NewDecoder(model Model, vocab *Vocabulary, maxSteps int) (*Decoder, error) {
	if model == nil {
		return nil, errors.New("model cannot be nil")
	}
	if vocab == nil {
		return nil, errors.New("vocabulary cannot be nil")
	}
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Decoder{model: model, vocab: vocab, maxSteps: maxSteps}, nil
}

// MaxSteps returns the step cap.
func (d *Decoder) MaxSteps() int { return d.maxSteps }

// Decode starts from SOS and repeatedly feeds the whole sequence back to the
// model, appending the argmax of the last position until EOS or the cap.
func (d *Decoder) Decode(ctx context.Context, src onnx.Tensor) (Transcript, error) {
	eos := int64(d.vocab.EOS())
	seq := make([]int64, 1, d.maxSteps+1)
	seq[0] = int64(d.vocab.SOS())

	var tr Transcript
	for step := range d.maxSteps {
		if err := ctx.Err(); err != nil {
			return Transcript{}, err
		}
		logits, err := d.model.Forward(ctx, src, seq)
		if err != nil {
			return Transcript{}, fmt.Errorf("decode step %d: %w", step, err)
		}
		next, err := d.argmaxLast(logits)
		if err != nil {
			return Transcript{}, fmt.Errorf("decode step %d: %w", step, err)
		}
		seq = append(seq, int64(next))
		tr.Steps++
		if int64(next) == eos {
			tr.Terminated = true
			break
		}
	}

	tr.Indices = make([]int, len(seq)-1)
	for i, v := range seq[1:] {
		tr.Indices[i] = int(v)
	}
	tr.Text = d.vocab.Decode(tr.Indices)
	return tr, nil
}

// argmaxLast picks the highest scoring class at the last position; ties go
// to the lowest index.
func (d *Decoder) argmaxLast(l Logits) (int, error) {
	row := l.Last()
	if len(row) == 0 {
		return 0, errors.New("model returned no scores")
	}
	scores := make([]float64, len(row))
	for i, v := range row {
		scores[i] = float64(v)
	}
	idx := floats.MaxIdx(scores)
	if idx >= d.vocab.Size() {
		return 0, fmt.Errorf("model emitted index %d outside vocabulary of size %d", idx, d.vocab.Size())
	}
	return idx, nil
}
