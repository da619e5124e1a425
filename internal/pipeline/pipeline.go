package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
)

// Config holds configuration for the OCR pipeline and its components.
type Config struct {
	ModelsDir        string            `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	Detector         detector.Config   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer       recognizer.Config `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	RegionWorkers    int               `mapstructure:"region_workers" yaml:"region_workers" json:"region_workers"`
	WarmupIterations int               `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// DefaultConfig returns a sequential pipeline over the default models.
func DefaultConfig() Config {
	return Config{
		ModelsDir:     models.GetModelsDir(""),
		Detector:      detector.DefaultConfig(),
		Recognizer:    recognizer.DefaultConfig(),
		RegionWorkers: 1,
	}
}

// RegionRecognizer transcribes one crop.
type RegionRecognizer interface {
	Recognize(ctx context.Context, crop image.Image) (recognizer.Transcript, error)
}

// Observer receives per-region and per-image events. Implementations must be
// safe for concurrent use.
type Observer interface {
	RegionDone(tr recognizer.Transcript, d time.Duration)
	RegionSkipped(reason string)
	ImageDone(records int, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) RegionDone(recognizer.Transcript, time.Duration) {}
func (nopObserver) RegionSkipped(string)                            {}
func (nopObserver) ImageDone(int, time.Duration, error)             {}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg      Config
	observer Observer
}

// NewBuilderFromConfig starts from an existing configuration.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithObserver attaches an event observer.
func (b *Builder) WithObserver(o Observer) *Builder {
	b.observer = o
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks that the configuration looks sane.
func (b *Builder) Validate() error {
	if b.cfg.Recognizer.ModelPath == "" {
		return errors.New("recognizer model path is empty")
	}
	if b.cfg.Recognizer.HparamsPath == "" {
		return errors.New("hparams path is empty")
	}
	if b.cfg.RegionWorkers < 0 {
		return fmt.Errorf("region workers must be >= 0, got %d", b.cfg.RegionWorkers)
	}
	return b.cfg.Detector.Validate()
}

// Build loads the detector and recognizer. Errors are fatal startup errors.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	det, err := detector.New(b.cfg.Detector)
	if err != nil {
		return nil, fmt.Errorf("init detector: %w", err)
	}
	rec, err := recognizer.NewRecognizer(b.cfg.Recognizer)
	if err != nil {
		_ = det.Close()
		return nil, fmt.Errorf("init recognizer: %w", err)
	}
	if b.cfg.WarmupIterations > 0 {
		if err := rec.Warmup(context.Background(), b.cfg.WarmupIterations); err != nil {
			_ = det.Close()
			_ = rec.Close()
			return nil, err
		}
	}
	p := New(det, rec, b.cfg.RegionWorkers)
	p.cfg = b.cfg
	if b.observer != nil {
		p.observer = b.observer
	}
	slog.Info("Pipeline ready",
		"detector", b.cfg.Detector.Backend,
		"recognizer", b.cfg.Recognizer.ModelPath,
		"region_workers", p.workers)
	return p, nil
}

// Pipeline wires a detector to a recognizer.
type Pipeline struct {
	cfg      Config
	det      detector.Detector
	rec      RegionRecognizer
	observer Observer
	workers  int
}

// New assembles a pipeline from already constructed components.
func New(det detector.Detector, rec RegionRecognizer, regionWorkers int) *Pipeline {
	return &Pipeline{det: det, rec: rec, observer: nopObserver{}, workers: max(regionWorkers, 1)}
}

// SetObserver replaces the event observer; nil restores the no-op observer.
func (p *Pipeline) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	p.observer = o
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() Config { return p.cfg }

// Close releases the detector and recognizer.
func (p *Pipeline) Close() error {
	var errs []error
	if p.det != nil {
		errs = append(errs, p.det.Close())
	}
	if c, ok := p.rec.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
