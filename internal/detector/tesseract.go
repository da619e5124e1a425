//go:build tesseract

package detector

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"sync"

	"github.com/otiai10/gosseract/v2"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// TesseractDetector uses Tesseract's layout analysis for word boxes. The
// recognized words are kept as region labels only.
type TesseractDetector struct {
	language string
	mu       sync.Mutex
	client   *gosseract.Client
}

// NewTesseractDetector creates a client for cfg.Language.
func NewTesseractDetector(cfg Config) (*TesseractDetector, error) {
	client := gosseract.NewClient()
	if err := client.SetLanguage(cfg.Language); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("tesseract language %q: %w", cfg.Language, err)
	}
	if err := client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &TesseractDetector{language: cfg.Language, client: client}, nil
}

// Detect returns one rectangle per word.
func (t *TesseractDetector) Detect(ctx context.Context, src Source) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if src.Image != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, src.Image); err != nil {
			return nil, fmt.Errorf("encode image for tesseract: %w", err)
		}
		if err := t.client.SetImageFromBytes(buf.Bytes()); err != nil {
			return nil, err
		}
	} else if err := t.client.SetImage(src.Path); err != nil {
		return nil, err
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("tesseract layout analysis: %w", err)
	}
	regions := make([]Region, 0, len(boxes))
	for _, b := range boxes {
		if b.Box.Empty() {
			continue
		}
		regions = append(regions, Region{
			Polygon: utils.RectPolygon(b.Box),
			Label:   b.Word,
			Score:   b.Confidence / 100,
		})
	}
	return regions, nil
}

// Close releases the Tesseract handle.
func (t *TesseractDetector) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client.Close()
}
