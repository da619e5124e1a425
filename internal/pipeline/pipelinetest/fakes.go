// Package pipelinetest provides in-memory detector and recognizer fakes for
// tests that exercise the pipeline without ONNX models.
package pipelinetest

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// Rect returns a detector region covering [x0,x1)×[y0,y1) with score.
func Rect(x0, y0, x1, y1 int, score float64) detector.Region {
	return detector.Region{Polygon: utils.RectPolygon(image.Rect(x0, y0, x1, y1)), Score: score}
}

// Detector returns fixed regions. Failures can be keyed by file base name.
type Detector struct {
	Regions []detector.Region
	Err     error
	// FailFor maps base names to the error returned for them.
	FailFor map[string]error

	mu     sync.Mutex
	calls  []string
	closed bool
}

func (d *Detector) Detect(ctx context.Context, src detector.Source) ([]detector.Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.calls = append(d.calls, src.Path)
	d.mu.Unlock()
	if err, ok := d.FailFor[filepath.Base(src.Path)]; ok {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	return append([]detector.Region(nil), d.Regions...), nil
}

func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Calls returns the paths passed to Detect.
func (d *Detector) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Closed reports whether Close was called.
func (d *Detector) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Recognizer transcribes every crop with Fn, or with its size when Fn is nil.
type Recognizer struct {
	Fn    func(ctx context.Context, crop image.Image) (recognizer.Transcript, error)
	calls atomic.Int64
}

func (r *Recognizer) Recognize(ctx context.Context, crop image.Image) (recognizer.Transcript, error) {
	r.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return recognizer.Transcript{}, err
	}
	if r.Fn != nil {
		return r.Fn(ctx, crop)
	}
	b := crop.Bounds()
	return recognizer.Transcript{Text: fmt.Sprintf("%dx%d", b.Dx(), b.Dy()), Steps: 2, Terminated: true}, nil
}

// Calls returns how many crops were submitted.
func (r *Recognizer) Calls() int { return int(r.calls.Load()) }

// ErrInjected is returned by FailingRecognizer.
var ErrInjected = errors.New("injected failure")

// FailingRecognizer fails (or panics) for crops of the given width.
func FailingRecognizer(width int, panics bool) *Recognizer {
	return &Recognizer{Fn: func(_ context.Context, crop image.Image) (recognizer.Transcript, error) {
		if crop.Bounds().Dx() == width {
			if panics {
				panic("boom")
			}
			return recognizer.Transcript{}, ErrInjected
		}
		return recognizer.Transcript{Text: "ok", Steps: 1, Terminated: true}, nil
	}}
}

// Observer counts pipeline events.
type Observer struct {
	mu      sync.Mutex
	Done    int
	Skipped map[string]int
	Images  int
	Failed  int
	Steps   int
}

func (o *Observer) RegionDone(tr recognizer.Transcript, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Done++
	o.Steps += tr.Steps
}

func (o *Observer) RegionSkipped(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Skipped == nil {
		o.Skipped = map[string]int{}
	}
	o.Skipped[reason]++
}

func (o *Observer) ImageDone(_ int, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Images++
	if err != nil {
		o.Failed++
	}
}
