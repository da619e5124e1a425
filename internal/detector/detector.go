package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// Backend names.
const (
	BackendONNX      = "onnx"
	BackendTesseract = "tesseract"
	BackendSidecar   = "sidecar"
)

// Region is one detected text area.
type Region struct {
	Polygon []utils.Point
	// Label is whatever text the backend guessed; the pipeline ignores it.
	Label string
	// Score is a confidence in [0,1].
	Score float64
}

// Source identifies the image to run detection on. Image may be nil, in
// which case backends that need pixels decode Path themselves.
type Source struct {
	Path  string
	Image image.Image
}

// Detector locates text regions in an image.
type Detector interface {
	Detect(ctx context.Context, src Source) ([]Region, error)
	Close() error
}

// Config selects and tunes a detector backend.
type Config struct {
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`

	// onnx
	ModelPath    string         `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DbThresh     float32        `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	BoxThresh    float32        `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	UnclipRatio  float64        `mapstructure:"unclip_ratio" yaml:"unclip_ratio" json:"unclip_ratio"`
	MinBoxSize   int            `mapstructure:"min_box_size" yaml:"min_box_size" json:"min_box_size"`
	MaxImageSize int            `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	NumThreads   int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU          onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`

	// tesseract
	Language string `mapstructure:"language" yaml:"language" json:"language"`

	// sidecar
	SidecarDir    string `mapstructure:"sidecar_dir" yaml:"sidecar_dir" json:"sidecar_dir"`
	SidecarSuffix string `mapstructure:"sidecar_suffix" yaml:"sidecar_suffix" json:"sidecar_suffix"`
}

// DefaultConfig returns the ONNX DB detector with common thresholds.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendONNX,
		ModelPath:     models.GetDetectionModelPath(""),
		DbThresh:      0.3,
		BoxThresh:     0.5,
		UnclipRatio:   1.5,
		MinBoxSize:    3,
		MaxImageSize:  960,
		GPU:           onnx.DefaultGPUConfig(),
		Language:      "rus",
		SidecarSuffix: ".regions.json",
	}
}

// UpdateModelPath re-resolves the ONNX model against modelsDir.
func (c *Config) UpdateModelPath(modelsDir string) {
	c.ModelPath = models.GetDetectionModelPath(modelsDir)
}

// Validate checks backend-specific settings.
func (c Config) Validate() error {
	switch strings.ToLower(c.Backend) {
	case BackendONNX:
		if c.ModelPath == "" {
			return errors.New("detector model path cannot be empty")
		}
		if c.DbThresh <= 0 || c.DbThresh >= 1 || c.BoxThresh < 0 || c.BoxThresh > 1 {
			return fmt.Errorf("thresholds out of range: db=%g box=%g", c.DbThresh, c.BoxThresh)
		}
		if c.UnclipRatio < 1 {
			return fmt.Errorf("unclip ratio must be >= 1, got %g", c.UnclipRatio)
		}
		if c.MaxImageSize < 32 {
			return fmt.Errorf("max image size must be >= 32, got %d", c.MaxImageSize)
		}
		return c.GPU.Validate()
	case BackendTesseract:
		if c.Language == "" {
			return errors.New("tesseract language cannot be empty")
		}
	case BackendSidecar:
		if c.SidecarSuffix == "" {
			return errors.New("sidecar suffix cannot be empty")
		}
	default:
		return fmt.Errorf("unknown detector backend %q (want %s, %s or %s)",
			c.Backend, BackendONNX, BackendTesseract, BackendSidecar)
	}
	return nil
}

// New constructs the configured backend.
func New(cfg Config) (Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch strings.ToLower(cfg.Backend) {
	case BackendTesseract:
		d, err := NewTesseractDetector(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case BackendSidecar:
		return NewSidecarDetector(cfg), nil
	default:
		d, err := NewDBDetector(cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}
