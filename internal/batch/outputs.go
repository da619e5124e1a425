package batch

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// Artifact name suffixes.
const (
	OverlaySuffix = "_bbox.png"
	CSVSuffix     = "_all_bboxes.csv"
	BBoxesSuffix  = "_bboxes.json"
	OCRSuffix     = "_ocr.json"
)

// writeOutputs writes every artifact the config asks for and returns the
// paths written.
func writeOutputs(cfg *Config, name string, img image.Image, res *pipeline.ImageResult) ([]string, error) {
	var written []string

	if cfg.Overlay && cfg.OutputDir != "" {
		path := filepath.Join(cfg.OutputDir, name+OverlaySuffix)
		if err := utils.SavePNG(path, pipeline.RenderOverlay(img, res.Regions)); err != nil {
			return written, fmt.Errorf("write overlay: %w", err)
		}
		written = append(written, path)
	}

	if cfg.DumpDir == "" {
		return written, nil
	}
	if err := os.MkdirAll(cfg.DumpDir, 0o750); err != nil {
		return written, fmt.Errorf("create dump dir: %w", err)
	}

	path := filepath.Join(cfg.DumpDir, name+CSVSuffix)
	if err := writeFile(path, func(f *os.File) error { return pipeline.WriteCSV(f, res.Records) }); err != nil {
		return written, fmt.Errorf("write csv: %w", err)
	}
	written = append(written, path)

	if cfg.DumpBBoxes {
		path := filepath.Join(cfg.DumpDir, name+BBoxesSuffix)
		err := writeFile(path, func(f *os.File) error {
			return detector.WriteRegions(f, filepath.Base(res.File), res.Regions)
		})
		if err != nil {
			return written, fmt.Errorf("write bboxes: %w", err)
		}
		written = append(written, path)
	}

	if cfg.DumpOCR {
		path := filepath.Join(cfg.DumpDir, name+OCRSuffix)
		err := writeFile(path, func(f *os.File) error {
			s, err := pipeline.ToJSONImage(res)
			if err != nil {
				return err
			}
			_, err = f.WriteString(s + "\n")
			return err
		})
		if err != nil {
			return written, fmt.Errorf("write ocr dump: %w", err)
		}
		written = append(written, path)
	}
	return written, nil
}

func writeFile(path string, fn func(f *os.File) error) error {
	f, err := os.Create(path) //nolint:gosec // G304: output path chosen by the operator
	if err != nil {
		return err
	}
	return errors.Join(fn(f), f.Close())
}
