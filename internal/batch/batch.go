// Package batch runs the OCR pipeline over many files and writes the
// per-image artifacts.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
)

// Processor transcribes one image. *pipeline.Pipeline implements it.
type Processor interface {
	ProcessImage(ctx context.Context, path string, img image.Image) (*pipeline.ImageResult, error)
}

// Item is one processed image. PDF inputs yield one item per embedded image.
type Item struct {
	Source  string                `json:"source"`
	Name    string                `json:"name"`
	Result  *pipeline.ImageResult `json:"ocr"`
	Outputs []string              `json:"outputs,omitempty"`
}

// Failure is an image or input that could not be processed.
type Failure struct {
	Source string `json:"source"`
	Name   string `json:"name"`
	Err    error  `json:"-"`
}

func (f Failure) Error() string { return fmt.Sprintf("%s: %v", f.Name, f.Err) }

// Result holds the outcome of a batch run.
type Result struct {
	RunID    string
	Inputs   []string
	Items    []Item
	Failures []Failure
	Duration time.Duration
	Workers  int
}

// inputOutcome is the slot one input fills.
type inputOutcome struct {
	items    []Item
	failures []Failure
}

// Run discovers the inputs and processes them with cfg.Workers images in
// flight. Failures of single images are collected in Result.Failures and
// never abort the run; only discovery problems and cancellation return an
// error. On cancellation the partial result is returned with ctx.Err().
func Run(ctx context.Context, cfg Config, proc Processor) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	files, err := discoverInputs(cfg.Inputs, cfg.Recursive)
	if err != nil {
		return nil, fmt.Errorf("failed to discover input files: %w", err)
	}
	if len(files) == 0 {
		return nil, errors.New("no image files found")
	}

	progress := cfg.Progress
	if progress == nil {
		progress = pipeline.NoOpProgressCallback{}
	}
	workers := max(cfg.Workers, 1)
	res := &Result{RunID: uuid.NewString(), Inputs: files, Workers: workers}
	slog.Info("Batch started", "run_id", res.RunID, "inputs", len(files), "workers", workers)

	start := time.Now()
	outcomes := make([]inputOutcome, len(files))
	var done atomic.Int64
	progress.OnStart(len(files))
	runErr := pipeline.ForEach(ctx, len(files), workers, func(ctx context.Context, i int) {
		outcomes[i] = processInput(ctx, &cfg, proc, files[i])
		n := int(done.Add(1))
		for _, f := range outcomes[i].failures {
			progress.OnError(n, f.Err)
		}
		progress.OnProgress(n, len(files))
	})
	progress.OnComplete()
	res.Duration = time.Since(start)

	for _, o := range outcomes {
		res.Items = append(res.Items, o.items...)
		res.Failures = append(res.Failures, o.failures...)
	}
	slog.Info("Batch finished",
		"run_id", res.RunID, "images", len(res.Items), "failed", len(res.Failures),
		"duration_ms", res.Duration.Milliseconds())
	return res, runErr
}
