package recognizer

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
)

// ErrEmptyCrop is returned when a crop has no pixels.
var ErrEmptyCrop = errors.New("crop has zero area")

// Normalizer turns an arbitrary crop into the fixed [1,3,H,W] model input.
// It is stateless and safe for concurrent use.
type Normalizer struct {
	height int
	width  int
}

// NewNormalizer returns a normalizer for an H×W model input.
func NewNormalizer(height, width int) (*Normalizer, error) {
	if height <= 0 || width <= 0 {
		return nil, fmt.Errorf("invalid model input size %dx%d", width, height)
	}
	return &Normalizer{height: height, width: width}, nil
}

// Size returns the model input height and width.
func (n *Normalizer) Size() (int, int) { return n.height, n.width }

// Resize scales the crop to the model height keeping its aspect ratio, then
// pads the right side with white up to the model width, or squeezes the
// line horizontally when it is wider than that.
func (n *Normalizer) Resize(crop image.Image) (*image.NRGBA, error) {
	if crop == nil || crop.Bounds().Empty() {
		return nil, ErrEmptyCrop
	}
	b := crop.Bounds()
	scaledW := max(int(float64(b.Dx())*float64(n.height)/float64(b.Dy())), 1)
	line := imaging.Resize(crop, scaledW, n.height, imaging.Linear)

	switch {
	case scaledW < n.width:
		canvas := imaging.New(n.width, n.height, color.White)
		return imaging.Paste(canvas, line, image.Pt(0, 0)), nil
	case scaledW > n.width:
		return imaging.Resize(line, n.width, n.height, imaging.Linear), nil
	default:
		return line, nil
	}
}

// Normalize resizes the crop and emits a CHW tensor scaled by the largest
// channel value present in the resized crop, so the brightest value maps to
// 1.0. An all-black input yields an all-zero tensor.
func (n *Normalizer) Normalize(crop image.Image) (onnx.Tensor, error) {
	img, err := n.Resize(crop)
	if err != nil {
		return onnx.Tensor{}, err
	}

	var peak uint8
	for i := 0; i < len(img.Pix); i += 4 {
		peak = max(peak, img.Pix[i], img.Pix[i+1], img.Pix[i+2])
	}

	plane := n.height * n.width
	data := make([]float32, 3*plane)
	if peak > 0 {
		scale := 1 / float32(peak)
		for y := range n.height {
			row := img.Pix[y*img.Stride:]
			for x := range n.width {
				px := row[x*4:]
				idx := y*n.width + x
				data[idx] = float32(px[0]) * scale
				data[plane+idx] = float32(px[1]) * scale
				data[2*plane+idx] = float32(px[2]) * scale
			}
		}
	}
	return onnx.NewImageTensor(data, 3, n.height, n.width)
}
