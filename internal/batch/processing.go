package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pdf"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

func stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// processInput handles one discovered file. A PDF fans out into its embedded
// images, each isolated from the others.
func processInput(ctx context.Context, cfg *Config, proc Processor, path string) inputOutcome {
	var out inputOutcome
	if !pdf.IsPDF(path) {
		item, err := processOne(ctx, cfg, proc, path, stem(path), nil)
		if err != nil {
			out.failures = append(out.failures, failure(path, stem(path), err))
		} else {
			out.items = append(out.items, item)
		}
		return out
	}

	pages, err := pdf.ExtractImages(path, cfg.PDF)
	if err != nil {
		out.failures = append(out.failures, failure(path, stem(path), err))
		return out
	}
	if len(pages) == 0 {
		slog.Warn("PDF has no decodable images", "file", path)
	}
	for _, p := range pages {
		if ctx.Err() != nil {
			break
		}
		name := p.Name(stem(path))
		item, err := processOne(ctx, cfg, proc, path, name, p.Image)
		if err != nil {
			out.failures = append(out.failures, failure(path, name, err))
			continue
		}
		out.items = append(out.items, item)
	}
	return out
}

func failure(source, name string, err error) Failure {
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("Image processing failed", "file", name, "error", err)
	}
	return Failure{Source: source, Name: name, Err: err}
}

// processOne loads, transcribes and exports a single image. A panic anywhere
// below is returned as an error.
func processOne(ctx context.Context, cfg *Config, proc Processor, source, name string, img image.Image) (item Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while processing %s: %v", name, r)
		}
	}()

	if img == nil {
		if img, _, err = utils.LoadImage(source); err != nil {
			return Item{}, fmt.Errorf("failed to load %s: %w", source, err)
		}
	}
	res, err := proc.ProcessImage(ctx, source, img)
	if err != nil {
		return Item{}, fmt.Errorf("OCR failed for %s: %w", name, err)
	}
	outputs, err := writeOutputs(cfg, name, img, res)
	if err != nil {
		return Item{}, fmt.Errorf("export failed for %s: %w", name, err)
	}
	return Item{Source: source, Name: name, Result: res, Outputs: outputs}, nil
}
