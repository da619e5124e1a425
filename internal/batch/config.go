package batch

import (
	"errors"
	"fmt"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pdf"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
)

// Config holds all configuration for a batch run.
type Config struct {
	// Inputs are files or directories.
	Inputs    []string
	Recursive bool
	// Workers is the number of images processed at once.
	Workers int

	// OutputDir receives <stem>_bbox.png overlays; empty disables them.
	OutputDir string
	Overlay   bool
	// DumpDir receives <stem>_all_bboxes.csv and the optional JSON dumps;
	// empty disables every per-image dump.
	DumpDir    string
	DumpBBoxes bool
	DumpOCR    bool

	PDF pdf.Options

	Progress pipeline.ProgressCallback
}

// DefaultConfig returns a sequential run writing overlays and CSVs.
func DefaultConfig() Config {
	return Config{
		Workers:   1,
		OutputDir: "demo/output",
		Overlay:   true,
		DumpDir:   "demo/dump",
	}
}

// Validate checks the run can start.
func (c *Config) Validate() error {
	if len(c.Inputs) == 0 {
		return errors.New("no inputs given")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must be >= 0, got %d", c.Workers)
	}
	if c.Overlay && c.OutputDir == "" {
		return errors.New("overlay requested without an output directory")
	}
	if (c.DumpBBoxes || c.DumpOCR) && c.DumpDir == "" {
		return errors.New("dump requested without a dump directory")
	}
	return nil
}
