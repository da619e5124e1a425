//go:build !tesseract

package detector

import (
	"context"
	"errors"
)

var ErrNoTesseract = errors.New("detector: tesseract backend not linked; build with -tags=tesseract")

// TesseractDetector is unavailable in this build.
type TesseractDetector struct{}

func NewTesseractDetector(_ Config) (*TesseractDetector, error) { return nil, ErrNoTesseract }

func (*TesseractDetector) Detect(_ context.Context, _ Source) ([]Region, error) {
	return nil, ErrNoTesseract
}

func (*TesseractDetector) Close() error { return nil }
