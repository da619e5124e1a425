package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"log/slog"
	"time"

	"github.com/disintegration/imaging"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
)

// Config holds configuration for the text recognizer.
type Config struct {
	ModelPath   string         `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	HparamsPath string         `mapstructure:"hparams_path" yaml:"hparams_path" json:"hparams_path"`
	MaxSteps    int            `mapstructure:"max_steps" yaml:"max_steps" json:"max_steps"`
	NumThreads  int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	SourceInput string         `mapstructure:"source_input" yaml:"source_input" json:"source_input"`
	TargetInput string         `mapstructure:"target_input" yaml:"target_input" json:"target_input"`
	OutputName  string         `mapstructure:"output_name" yaml:"output_name" json:"output_name"`
	GPU         onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DefaultConfig returns a configuration pointing at the default model files.
func DefaultConfig() Config {
	return Config{
		ModelPath:   models.GetRecognitionModelPath(""),
		HparamsPath: models.GetHparamsPath(""),
		MaxSteps:    DefaultMaxSteps,
		GPU:         onnx.DefaultGPUConfig(),
	}
}

// UpdateModelPath re-resolves model files against modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetRecognitionModelPath(modelsDir)
	c.HparamsPath = models.GetHparamsPath(modelsDir)
}

// Recognizer transcribes crops: normalize, then decode.
type Recognizer struct {
	vocab      *Vocabulary
	normalizer *Normalizer
	decoder    *Decoder
	model      Model
}

// NewRecognizer loads hyperparameters, vocabulary and the ONNX model. Any
// failure here is fatal for the caller.
func NewRecognizer(cfg Config) (*Recognizer, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path cannot be empty")
	}
	if err := models.ValidateModelExists(cfg.ModelPath); err != nil {
		return nil, err
	}
	hp, err := LoadHparams(cfg.HparamsPath)
	if err != nil {
		return nil, err
	}
	vocab, err := NewVocabulary(hp.Alphabet)
	if err != nil {
		return nil, fmt.Errorf("invalid alphabet in %s: %w", cfg.HparamsPath, err)
	}
	norm, err := NewNormalizer(hp.Height, hp.Width)
	if err != nil {
		return nil, err
	}

	model, err := NewONNXModel(cfg)
	if err != nil {
		return nil, err
	}
	if c := model.Info().Classes; c > 0 && c != vocab.Size() {
		_ = model.Close()
		return nil, fmt.Errorf("model predicts %d classes but alphabet has %d tokens", c, vocab.Size())
	}

	slog.Debug("Recognizer initialized",
		"alphabet", vocab.Size(), "height", hp.Height, "width", hp.Width, "max_steps", cfg.MaxSteps)
	return New(model, vocab, norm, cfg.MaxSteps)
}

// New assembles a recognizer from already constructed parts.
func New(model Model, vocab *Vocabulary, norm *Normalizer, maxSteps int) (*Recognizer, error) {
	if norm == nil {
		return nil, errors.New("normalizer cannot be nil")
	}
	dec, err := NewDecoder(model, vocab, maxSteps)
	if err != nil {
		return nil, err
	}
	return &Recognizer{vocab: vocab, normalizer: norm, decoder: dec, model: model}, nil
}

// Vocabulary returns the shared vocabulary.
func (r *Recognizer) Vocabulary() *Vocabulary { return r.vocab }

// Normalizer returns the input normalizer.
func (r *Recognizer) Normalizer() *Normalizer { return r.normalizer }

// MaxSteps returns the decode step cap.
func (r *Recognizer) MaxSteps() int { return r.decoder.MaxSteps() }

// Recognize transcribes a single crop.
func (r *Recognizer) Recognize(ctx context.Context, crop image.Image) (Transcript, error) {
	start := time.Now()
	src, err := r.normalizer.Normalize(crop)
	if err != nil {
		return Transcript{}, fmt.Errorf("normalize: %w", err)
	}
	tr, err := r.decoder.Decode(ctx, src)
	if err != nil {
		return Transcript{}, err
	}
	slog.Debug("Region decoded",
		"steps", tr.Steps, "terminated", tr.Terminated, "chars", len([]rune(tr.Text)),
		"duration_ms", time.Since(start).Milliseconds())
	return tr, nil
}

// Warmup decodes a blank line n times so the runtime allocates its buffers.
func (r *Recognizer) Warmup(ctx context.Context, n int) error {
	h, w := r.normalizer.Size()
	blank := imaging.New(w, h, color.White)
	for i := range n {
		if _, err := r.Recognize(ctx, blank); err != nil {
			return fmt.Errorf("warmup iteration %d: %w", i, err)
		}
	}
	return nil
}

// Close releases the model when it owns native resources.
func (r *Recognizer) Close() error {
	if c, ok := r.model.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
