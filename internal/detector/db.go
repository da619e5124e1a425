package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/mempool"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// ImageNet statistics used by DB detectors.
var (
	dbMean = [3]float32{0.485, 0.456, 0.406}
	dbStd  = [3]float32{0.229, 0.224, 0.225}
)

// DBDetector runs a differentiable-binarization text detector through ONNX Runtime.
type DBDetector struct {
	config  Config
	session *onnxrt.DynamicAdvancedSession
	input   onnxrt.InputOutputInfo
	output  onnxrt.InputOutputInfo
	mu      sync.RWMutex
}

// NewDBDetector loads the model at cfg.ModelPath.
func NewDBDetector(cfg Config) (*DBDetector, error) {
	if err := onnx.EnsureEnvironment(cfg.GPU.UseGPU); err != nil {
		return nil, err
	}
	inputs, outputs, err := onnx.ModelIO(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}
	if len(inputs[0].Dimensions) != 4 {
		return nil, fmt.Errorf("expected 4D input tensor, got %dD", len(inputs[0].Dimensions))
	}

	session, err := onnx.NewSession(cfg.ModelPath, []string{inputs[0].Name}, []string{outputs[0].Name},
		onnx.SessionOptions{NumThreads: cfg.NumThreads, GPU: cfg.GPU})
	if err != nil {
		return nil, err
	}
	slog.Debug("Detector initialized", "model_path", cfg.ModelPath, "max_image_size", cfg.MaxImageSize)
	return &DBDetector{config: cfg, session: session, input: inputs[0], output: outputs[0]}, nil
}

// Detect resizes the page, predicts a probability map and extracts boxes
// in original image coordinates.
func (d *DBDetector) Detect(ctx context.Context, src Source) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := src.Image
	if img == nil {
		var err error
		if img, _, err = utils.LoadImage(src.Path); err != nil {
			return nil, err
		}
	}
	start := time.Now()

	resized, err := utils.FitWithin(img, d.config.MaxImageSize, 32)
	if err != nil {
		return nil, fmt.Errorf("preprocessing failed: %w", err)
	}
	rw, rh := resized.Bounds().Dx(), resized.Bounds().Dy()
	data := mempool.GetFloat32(3 * rw * rh)
	defer mempool.PutFloat32(data)
	fillNormalized(resized, data)

	prob, mw, mh, err := d.run(data, rw, rh)
	if err != nil {
		return nil, err
	}

	regions := postProcess(prob, mw, mh, d.config)
	b := img.Bounds()
	regions = scaleRegions(regions, mw, mh, b.Dx(), b.Dy())
	slog.Debug("Detection finished",
		"file", src.Path, "regions", len(regions), "duration_ms", time.Since(start).Milliseconds())
	return regions, nil
}

// fillNormalized writes ImageNet-normalized CHW values into dst.
func fillNormalized(img *image.NRGBA, dst []float32) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	plane := w * h
	for y := range h {
		row := img.Pix[y*img.Stride:]
		for x := range w {
			px := row[x*4:]
			idx := y*w + x
			for c := range 3 {
				dst[c*plane+idx] = (float32(px[c])/255 - dbMean[c]) / dbStd[c]
			}
		}
	}
}

func (d *DBDetector) run(data []float32, w, h int) ([]float32, int, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.session == nil {
		return nil, 0, 0, errors.New("detector session is closed")
	}

	in, err := onnxrt.NewTensor(onnxrt.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = in.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := d.session.Run([]onnxrt.Value{in}, outputs); err != nil {
		return nil, 0, 0, fmt.Errorf("inference failed: %w", err)
	}
	defer func() { _ = outputs[0].Destroy() }()

	ft, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return nil, 0, 0, fmt.Errorf("expected float32 tensor, got %T", outputs[0])
	}
	shape := ft.GetShape()
	if len(shape) != 4 {
		return nil, 0, 0, fmt.Errorf("expected 4D output tensor, got %dD", len(shape))
	}
	mh, mw := int(shape[2]), int(shape[3])
	// Only the first channel holds the probability map.
	prob := append([]float32(nil), ft.GetData()[:mw*mh]...)
	return prob, mw, mh, nil
}

// Close releases the session.
func (d *DBDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Destroy()
	d.session = nil
	return err
}
