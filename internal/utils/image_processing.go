package utils

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ImageProcessingError wraps a failure with the operation that caused it.
type ImageProcessingError struct {
	Operation string
	Err       error
}

func (e *ImageProcessingError) Error() string {
	return fmt.Sprintf("image processing error in %s: %v", e.Operation, e.Err)
}

func (e *ImageProcessingError) Unwrap() error { return e.Err }

// FitWithin scales img down so that its longer side is at most maxSide and
// both sides are multiples of multiple (at least one multiple). Images are
// never scaled up beyond their rounded size.
func FitWithin(img image.Image, maxSide, multiple int) (*image.NRGBA, error) {
	if img == nil {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	if maxSide <= 0 || multiple <= 0 {
		return nil, &ImageProcessingError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid constraints max=%d multiple=%d", maxSide, multiple),
		}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, &ImageProcessingError{Operation: "resize", Err: errors.New("image has no pixels")}
	}

	scale := 1.0
	if longest := max(w, h); longest > maxSide {
		scale = float64(maxSide) / float64(longest)
	}
	nw := roundToMultiple(int(float64(w)*scale), multiple)
	nh := roundToMultiple(int(float64(h)*scale), multiple)
	return imaging.Resize(img, nw, nh, imaging.Linear), nil
}

func roundToMultiple(v, m int) int {
	r := ((v + m/2) / m) * m
	if r < m {
		return m
	}
	return r
}
