package recognizer

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Hparams are the recognizer hyperparameters stored next to the weights.
// Only the alphabet and input geometry matter at inference time; the
// architecture fields are validated so a mismatched file is caught early.
type Hparams struct {
	Alphabet  []string `mapstructure:"cyrillic" json:"cyrillic" yaml:"cyrillic"`
	Hidden    int      `mapstructure:"hidden" json:"hidden" yaml:"hidden"`
	EncLayers int      `mapstructure:"enc_layers" json:"enc_layers" yaml:"enc_layers"`
	DecLayers int      `mapstructure:"dec_layers" json:"dec_layers" yaml:"dec_layers"`
	NHead     int      `mapstructure:"nhead" json:"nhead" yaml:"nhead"`
	Dropout   float64  `mapstructure:"dropout" json:"dropout" yaml:"dropout"`
	Height    int      `mapstructure:"height" json:"height" yaml:"height"`
	Width     int      `mapstructure:"width" json:"width" yaml:"width"`
}

// Default input geometry of the 64x256 recognizer.
const (
	DefaultHeight = 64
	DefaultWidth  = 256
)

// LoadHparams reads a JSON hyperparameter file.
func LoadHparams(path string) (*Hparams, error) {
	if path == "" {
		return nil, errors.New("hparams path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetDefault("height", DefaultHeight)
	v.SetDefault("width", DefaultWidth)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read hparams %s: %w", path, err)
	}
	var hp Hparams
	if err := v.Unmarshal(&hp); err != nil {
		return nil, fmt.Errorf("failed to parse hparams %s: %w", path, err)
	}
	if err := hp.Validate(); err != nil {
		return nil, fmt.Errorf("invalid hparams %s: %w", path, err)
	}
	return &hp, nil
}

// Validate checks the fields inference depends on.
func (h *Hparams) Validate() error {
	if len(h.Alphabet) == 0 {
		return errors.New("alphabet (cyrillic) is empty")
	}
	if h.Height <= 0 || h.Width <= 0 {
		return fmt.Errorf("input size must be positive, got %dx%d", h.Width, h.Height)
	}
	if h.Hidden < 0 || h.EncLayers < 0 || h.DecLayers < 0 || h.NHead < 0 {
		return errors.New("layer counts and sizes must be non-negative")
	}
	if h.Hidden > 0 && h.NHead > 0 && h.Hidden%h.NHead != 0 {
		return fmt.Errorf("hidden size %d is not divisible by nhead %d", h.Hidden, h.NHead)
	}
	if h.Dropout < 0 || h.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0,1), got %g", h.Dropout)
	}
	return nil
}
