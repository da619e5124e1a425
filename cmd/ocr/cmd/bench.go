package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/benchmark"
)

func newBenchCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench <image>...",
		Short: "Measure pipeline latency and throughput",
		Long: `Run the full pipeline over the given images several times and report
per-image latency percentiles and transcription throughput. With
--region-workers-list, one case is run per worker count.

Examples:
  cyrocr bench scan.png --iterations 5
  cyrocr bench a.png b.png --region-workers-list 1,2,4`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBench(cmd, args)
		},
	}
	f := cmd.Flags()
	f.Int("iterations", 3, "passes over the image set per case")
	f.IntSlice("region-workers-list", nil, "region worker counts to compare (default: configured value)")
	f.String("hparams", "", "model hyperparameter JSON")
	f.String("weights", "", "recognizer ONNX weights")
	f.String("detector", "", "detector backend")
	f.String("det-model", "", "override detection model path")
	f.String("sidecar-dir", "", "directory holding <stem>.regions.json files")
	f.Int("warmup", 0, "recognizer warmup iterations before timing")
	f.Bool("gpu", false, "enable GPU acceleration using CUDA")
	return cmd
}

func (a *app) runBench(cmd *cobra.Command, args []string) error {
	iterations, _ := cmd.Flags().GetInt("iterations")
	if iterations <= 0 {
		return fmt.Errorf("iterations must be positive, got %d", iterations)
	}
	workerCounts, _ := cmd.Flags().GetIntSlice("region-workers-list")
	if len(workerCounts) == 0 {
		workerCounts = []int{a.cfg.Pipeline.RegionWorkers}
	}

	images, err := benchmark.LoadImages(args)
	if err != nil {
		return err
	}

	suite := benchmark.NewSuite()
	for _, n := range workerCounts {
		if n <= 0 {
			return fmt.Errorf("region workers must be positive, got %d", n)
		}
		cfg := *a.cfg
		cfg.Pipeline.RegionWorkers = n
		proc, err := a.newProcessor(&cfg, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize OCR pipeline: %w", err)
		}
		defer func() {
			if cerr := proc.Close(); cerr != nil {
				slog.Warn("Failed to close pipeline", "error", cerr)
			}
		}()
		suite.Add(fmt.Sprintf("region_workers=%d", n), proc)
	}

	var errs []error
	for _, r := range suite.RunAll(cmd.Context(), images, iterations) {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Name, r.Err))
		}
	}
	suite.PrintResults(cmd.OutOrStdout())
	return errors.Join(errs...)
}
