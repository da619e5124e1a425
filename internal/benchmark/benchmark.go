// Package benchmark times the OCR pipeline over a fixed set of images.
package benchmark

import (
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
	"gonum.org/v1/gonum/stat"
)

// Processor is the pipeline under test.
type Processor interface {
	ProcessImage(ctx context.Context, path string, img image.Image) (*pipeline.ImageResult, error)
}

// Image is a decoded benchmark input.
type Image struct {
	Path  string
	Image image.Image
}

// LoadImages decodes every path up front so decoding is not timed.
func LoadImages(paths []string) ([]Image, error) {
	out := make([]Image, 0, len(paths))
	for _, p := range paths {
		img, _, err := utils.LoadImage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, Image{Path: p, Image: img})
	}
	return out, nil
}

// MemoryStats holds memory usage statistics.
type MemoryStats struct {
	AllocBytes      uint64 // Currently allocated bytes
	TotalAllocBytes uint64 // Total allocated bytes (cumulative)
	NumGC           uint32
}

// GetMemoryStats returns current memory statistics.
func GetMemoryStats() MemoryStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocBytes: m.Alloc, TotalAllocBytes: m.TotalAlloc, NumGC: m.NumGC}
}

// Result holds the outcome of one benchmark case.
type Result struct {
	Name         string
	Iterations   int
	Records      int
	Durations    []time.Duration // one per ProcessImage call
	Total        time.Duration
	MemoryBefore MemoryStats
	MemoryAfter  MemoryStats
	Err          error
}

// Mean returns the mean per-image latency.
func (r Result) Mean() time.Duration {
	if len(r.Durations) == 0 {
		return 0
	}
	return fromSeconds(stat.Mean(r.seconds(), nil))
}

// Percentile returns the empirical p-quantile (0..1) of per-image latency.
func (r Result) Percentile(p float64) time.Duration {
	if len(r.Durations) == 0 {
		return 0
	}
	x := r.seconds()
	slices.Sort(x)
	return fromSeconds(stat.Quantile(p, stat.Empirical, x, nil))
}

// RecordsPerSecond is the transcription throughput over the whole case.
func (r Result) RecordsPerSecond() float64 {
	if r.Total <= 0 {
		return 0
	}
	return float64(r.Records) / r.Total.Seconds()
}

func (r Result) seconds() []float64 {
	x := make([]float64, len(r.Durations))
	for i, d := range r.Durations {
		x[i] = d.Seconds()
	}
	return x
}

func fromSeconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: ERROR - %v", r.Name, r.Err)
	}
	memDiff := int64(r.MemoryAfter.TotalAllocBytes - r.MemoryBefore.TotalAllocBytes) //nolint:gosec // G115: display only
	return fmt.Sprintf("%s: %d calls, mean: %v, p50: %v, p95: %v, total: %v, %.1f records/s, alloc: %d KB",
		r.Name, len(r.Durations),
		r.Mean().Round(time.Microsecond),
		r.Percentile(0.5).Round(time.Microsecond),
		r.Percentile(0.95).Round(time.Microsecond),
		r.Total.Round(time.Millisecond),
		r.RecordsPerSecond(), memDiff/1024)
}

// Run processes every image iterations times and stops at the first error.
func Run(ctx context.Context, name string, proc Processor, images []Image, iterations int) Result {
	runtime.GC()
	res := Result{Name: name, Iterations: iterations, MemoryBefore: GetMemoryStats()}

	start := time.Now()
loop:
	for range iterations {
		for _, im := range images {
			if err := ctx.Err(); err != nil {
				res.Err = err
				break loop
			}
			t := time.Now()
			out, err := proc.ProcessImage(ctx, im.Path, im.Image)
			res.Durations = append(res.Durations, time.Since(t))
			if err != nil {
				res.Err = fmt.Errorf("%s: %w", im.Path, err)
				break loop
			}
			res.Records += len(out.Records)
		}
	}
	res.Total = time.Since(start)
	res.MemoryAfter = GetMemoryStats()
	return res
}

// Case is one named pipeline configuration.
type Case struct {
	Name string
	Proc Processor
}

// Suite runs several cases over the same images.
type Suite struct {
	cases   []Case
	results []Result
	mu      sync.Mutex
}

// NewSuite creates an empty suite.
func NewSuite() *Suite { return &Suite{} }

// Add registers a case.
func (s *Suite) Add(name string, proc Processor) {
	s.cases = append(s.cases, Case{Name: name, Proc: proc})
}

// RunAll runs every case in registration order.
func (s *Suite) RunAll(ctx context.Context, images []Image, iterations int) []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = make([]Result, 0, len(s.cases))
	for _, c := range s.cases {
		s.results = append(s.results, Run(ctx, c.Name, c.Proc, images, iterations))
	}
	return s.results
}

// Results returns the last run results.
func (s *Suite) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.results
}

// PrintResults writes one line per case.
func (s *Suite) PrintResults(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Benchmark Results:")
	_, _ = fmt.Fprintln(w, "==================")
	for _, r := range s.Results() {
		_, _ = fmt.Fprintln(w, r.String())
	}
}
