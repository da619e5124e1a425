package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// regionOutcome is the slot a region worker fills.
type regionOutcome struct {
	record *TranscriptionRecord
	skip   *Skip
}

// ProcessImage detects, orders and transcribes every region of one image.
// img may be nil, in which case path is decoded. Region failures are logged
// and recorded as skips; only detection, loading or cancellation fail the
// image.
func (p *Pipeline) ProcessImage(ctx context.Context, path string, img image.Image) (*ImageResult, error) {
	res, err := p.processImage(ctx, path, img)
	var n int
	var total time.Duration
	if res != nil {
		n = len(res.Records)
		total = time.Duration(res.Processing.TotalNs)
	}
	p.observer.ImageDone(n, total, err)
	return res, err
}

func (p *Pipeline) processImage(ctx context.Context, path string, img image.Image) (*ImageResult, error) {
	if p == nil || p.det == nil || p.rec == nil {
		return nil, errors.New("pipeline not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	name := filepath.Base(path)

	if img == nil {
		if path == "" {
			return nil, errors.New("no image or path provided")
		}
		var err error
		if img, _, err = utils.LoadImage(path); err != nil {
			return nil, err
		}
	}

	detStart := time.Now()
	regions, err := p.det.Detect(ctx, detector.Source{Path: path, Image: img})
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	detDur := time.Since(detStart)
	sorted := SortReadingOrder(regions)
	slog.Debug("Regions detected", "file", name, "regions", len(sorted), "duration_ms", detDur.Milliseconds())

	recStart := time.Now()
	outcomes := make([]regionOutcome, len(sorted))
	err = ForEach(ctx, len(sorted), p.workers, func(ctx context.Context, i int) {
		outcomes[i] = p.processRegion(ctx, name, img, i, sorted[i])
	})
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	res := &ImageResult{
		File:    path,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Regions: sorted,
		Records: make([]TranscriptionRecord, 0, len(sorted)),
	}
	for _, o := range outcomes {
		switch {
		case o.record != nil:
			res.Records = append(res.Records, *o.record)
		case o.skip != nil:
			res.Skipped = append(res.Skipped, *o.skip)
		}
	}
	res.Processing.DetectionNs = detDur.Nanoseconds()
	res.Processing.RecognitionNs = time.Since(recStart).Nanoseconds()
	res.Processing.TotalNs = time.Since(start).Nanoseconds()

	slog.Info("Image processed",
		"file", name, "records", len(res.Records), "skipped", len(res.Skipped),
		"duration_ms", time.Since(start).Milliseconds())
	return res, nil
}

func (p *Pipeline) processRegion(ctx context.Context, name string, img image.Image, idx int, r detector.Region) regionOutcome {
	ext := ExtractRegion(img, r.Polygon)
	if ext.Empty {
		slog.Warn("Cropped region has zero size, skipping", "file", name, "region", idx, "bbox", ext.Bounds.String())
		p.observer.RegionSkipped(SkipEmptyRegion)
		return regionOutcome{skip: &Skip{Index: idx, Reason: SkipEmptyRegion}}
	}

	start := time.Now()
	tr, err := p.recognize(ctx, ext.Crop)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("Region recognition failed", "file", name, "region", idx, "error", err)
		}
		p.observer.RegionSkipped(SkipRecognitionFailed)
		return regionOutcome{skip: &Skip{Index: idx, Reason: SkipRecognitionFailed, Error: err.Error()}}
	}
	d := time.Since(start)
	if !tr.Terminated {
		slog.Debug("Decode hit step limit without EOS", "file", name, "region", idx, "steps", tr.Steps)
	}
	p.observer.RegionDone(tr, d)

	poly := utils.TruncPoints(r.Polygon)
	rec := &TranscriptionRecord{
		Index:      idx,
		Polygon:    make([][2]int, len(poly)),
		BBox:       [4]int{ext.Bounds.Min.X, ext.Bounds.Min.Y, ext.Bounds.Max.X, ext.Bounds.Max.Y},
		Confidence: r.Score,
		Text:       tr.Text,
		Steps:      tr.Steps,
		Terminated: tr.Terminated,
	}
	for i, pt := range poly {
		rec.Polygon[i] = [2]int{pt.X, pt.Y}
	}
	return regionOutcome{record: rec}
}

// recognize turns a recognizer panic into an error.
func (p *Pipeline) recognize(ctx context.Context, crop image.Image) (tr recognizer.Transcript, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("recognizer panic: %v", r)
		}
	}()
	return p.rec.Recognize(ctx, crop)
}
