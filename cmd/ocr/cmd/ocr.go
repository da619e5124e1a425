package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/batch"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/config"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pdf"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// addOCRFlags defines the flags shared by image and batch.
func addOCRFlags(cmd *cobra.Command) {
	defaults := config.DefaultConfig()
	f := cmd.Flags()

	f.String("hparams", "", "model hyperparameter JSON (default: <models-dir>/recognition/config.json)")
	f.String("weights", "", "recognizer ONNX weights (default: <models-dir>/recognition/"+
		"ocr_transformer_rn50_64x256_53str.onnx)")
	f.Int("max-steps", recognizer.DefaultMaxSteps, "maximum decode steps per region")
	f.String("detector", defaults.Pipeline.Detector.Backend,
		"detector backend ("+detector.BackendONNX+", "+detector.BackendTesseract+", "+detector.BackendSidecar+")")
	f.String("det-model", "", "override detection model path")
	f.Float32("box-thresh", defaults.Pipeline.Detector.BoxThresh, "minimum detection box score (0..1)")
	f.String("sidecar-dir", "", "directory holding <stem>.regions.json files (sidecar detector)")
	f.Int("region-workers", defaults.Pipeline.RegionWorkers, "regions recognized concurrently per image")
	f.Int("warmup", 0, "recognizer warmup iterations before processing")

	f.String("output-dir", defaults.Output.Dir, "directory for <stem>_bbox.png overlays")
	f.String("dump-dir", defaults.Output.DumpDir, "directory for CSV and JSON dumps")
	f.Bool("dump-bboxes", false, "write <stem>_bboxes.json with the sorted detections")
	f.Bool("dump-ocr", false, "write <stem>_ocr.json with the full image result")
	f.Bool("overlay", defaults.Output.Overlay, "write annotated overlay images")

	f.Int("workers", defaults.Batch.Workers, "images processed concurrently")
	f.String("pdf-pages", "", "page range for PDF inputs (e.g. 1-3,7)")
	f.String("pdf-password", "", "password for encrypted PDF inputs")

	f.Bool("gpu", false, "enable GPU acceleration using CUDA")
	f.Int("gpu-device", 0, "CUDA device ID")
	f.String("gpu-mem-limit", defaults.GPU.MemoryLimit, "GPU memory limit (auto, or e.g. 512MB, 2GB)")

	f.StringP("format", "f", outputFormatText, "result format printed to stdout (text, json, csv)")
	f.StringP("output", "o", "", "write results to this file instead of stdout")
	f.Bool("progress", false, "show a progress bar on stderr")
	f.Bool("stats", true, "print summary statistics on stderr")
}

// ocrOptions are the flags that only affect presentation.
type ocrOptions struct {
	format   string
	output   string
	progress bool
	stats    bool
}

func readOCROptions(cmd *cobra.Command) (ocrOptions, error) {
	var o ocrOptions
	o.format, _ = cmd.Flags().GetString("format")
	o.output, _ = cmd.Flags().GetString("output")
	o.progress, _ = cmd.Flags().GetBool("progress")
	o.stats, _ = cmd.Flags().GetBool("stats")
	switch o.format {
	case outputFormatText, outputFormatJSON, outputFormatCSV:
	default:
		return o, fmt.Errorf("unsupported format %q (must be text, json or csv)", o.format)
	}
	return o, nil
}

func batchConfig(cfg *config.Config, inputs []string) batch.Config {
	return batch.Config{
		Inputs:     inputs,
		Recursive:  cfg.Batch.Recursive,
		Workers:    cfg.Batch.Workers,
		OutputDir:  cfg.Output.Dir,
		Overlay:    cfg.Output.Overlay,
		DumpDir:    cfg.Output.DumpDir,
		DumpBBoxes: cfg.Output.DumpBBoxes,
		DumpOCR:    cfg.Output.DumpOCR,
		PDF: pdf.Options{
			Pages:    cfg.Batch.PDFPages,
			Password: cfg.Batch.PDFPassword,
		},
	}
}

// runOCR builds the pipeline and runs it over inputs. Failures of single
// images are reported but do not fail the command; pipeline construction
// errors do.
func (a *app) runOCR(cmd *cobra.Command, inputs []string) error {
	opts, err := readOCROptions(cmd)
	if err != nil {
		return err
	}
	bcfg := batchConfig(a.cfg, inputs)
	if err := bcfg.Validate(); err != nil {
		return err
	}
	logProgress := pipeline.NewLogProgressCallback(slog.Default(), slog.LevelDebug).WithInterval(10)
	if opts.progress {
		bcfg.Progress = pipeline.MultiProgressCallback{
			pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), "OCR"),
			logProgress,
		}
	} else {
		bcfg.Progress = logProgress
	}

	proc, err := a.newProcessor(a.cfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize OCR pipeline: %w", err)
	}
	defer func() {
		if cerr := proc.Close(); cerr != nil {
			slog.Warn("Failed to close pipeline", "error", cerr)
		}
	}()

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := batch.Run(ctx, bcfg, proc)
	if res != nil {
		if err := res.SaveResults(cmd.OutOrStdout(), opts.format, opts.output); err != nil {
			return err
		}
		if opts.stats {
			res.PrintStats(cmd.ErrOrStderr())
		}
	}
	return runErr
}
