package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// Logits holds per-position scores from one forward pass, row-major [Steps][Classes].
type Logits struct {
	Data    []float32
	Steps   int
	Classes int
}

// Row returns the scores for decode position i.
func (l Logits) Row(i int) []float32 {
	if i < 0 || i >= l.Steps || l.Classes <= 0 {
		return nil
	}
	return l.Data[i*l.Classes : (i+1)*l.Classes]
}

// Last returns the scores for the final decode position.
func (l Logits) Last() []float32 { return l.Row(l.Steps - 1) }

// Model scores the next token for every prefix of tokens given the image.
type Model interface {
	Forward(ctx context.Context, src onnx.Tensor, tokens []int64) (Logits, error)
}

// ONNXModel runs an exported encoder-decoder transformer. It expects an
// image input [1,3,H,W] float32, a target input [T,1] int64 and produces
// logits [T,1,V] (or [1,T,V]).
type ONNXModel struct {
	session   *onnxrt.DynamicAdvancedSession
	srcName   string
	tgtName   string
	outName   string
	classes   int
	modelPath string
	mu        sync.RWMutex
}

// ModelInfo describes the loaded model bindings.
type ModelInfo struct {
	Path    string `json:"path"`
	Source  string `json:"source_input"`
	Target  string `json:"target_input"`
	Output  string `json:"output"`
	Classes int    `json:"classes"`
}

// NewONNXModel opens the model and resolves its input and output bindings.
// Empty names in cfg are inferred from tensor rank.
func NewONNXModel(cfg Config) (*ONNXModel, error) {
	if err := onnx.EnsureEnvironment(cfg.GPU.UseGPU); err != nil {
		return nil, err
	}
	inputs, outputs, err := onnx.ModelIO(cfg.ModelPath)
	if err != nil {
		return nil, err
	}
	srcName, tgtName, err := bindInputs(inputs, cfg.SourceInput, cfg.TargetInput)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, errors.New("model declares no outputs")
	}
	out := outputs[0]
	if cfg.OutputName != "" {
		out.Name = cfg.OutputName
	}
	classes := 0
	if dims := out.Dimensions; len(dims) > 0 && dims[len(dims)-1] > 0 {
		classes = int(dims[len(dims)-1])
	}

	session, err := onnx.NewSession(cfg.ModelPath, []string{srcName, tgtName}, []string{out.Name},
		onnx.SessionOptions{NumThreads: cfg.NumThreads, GPU: cfg.GPU})
	if err != nil {
		return nil, err
	}
	slog.Debug("Recognition model loaded",
		"path", cfg.ModelPath, "source", srcName, "target", tgtName, "output", out.Name, "classes", classes)

	return &ONNXModel{
		session:   session,
		srcName:   srcName,
		tgtName:   tgtName,
		outName:   out.Name,
		classes:   classes,
		modelPath: cfg.ModelPath,
	}, nil
}

// bindInputs picks the image input (rank 4) and the token input (rank 2).
func bindInputs(inputs []onnxrt.InputOutputInfo, src, tgt string) (string, string, error) {
	if len(inputs) != 2 {
		return "", "", fmt.Errorf("expected 2 model inputs (image, tokens), got %d", len(inputs))
	}
	for _, in := range inputs {
		switch len(in.Dimensions) {
		case 4:
			if src == "" {
				src = in.Name
			}
		case 2:
			if tgt == "" {
				tgt = in.Name
			}
		}
	}
	if src == "" || tgt == "" {
		return "", "", errors.New("could not identify image and token inputs; set them explicitly")
	}
	return src, tgt, nil
}

// Info returns the resolved bindings.
func (m *ONNXModel) Info() ModelInfo {
	return ModelInfo{Path: m.modelPath, Source: m.srcName, Target: m.tgtName, Output: m.outName, Classes: m.classes}
}

// Forward runs one full decoder pass over tokens.
func (m *ONNXModel) Forward(ctx context.Context, src onnx.Tensor, tokens []int64) (Logits, error) {
	if err := ctx.Err(); err != nil {
		return Logits{}, err
	}
	if len(tokens) == 0 {
		return Logits{}, errors.New("empty token sequence")
	}
	if err := onnx.VerifyImageTensor(src); err != nil {
		return Logits{}, fmt.Errorf("invalid source tensor: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return Logits{}, errors.New("recognition session is closed")
	}

	srcT, err := onnxrt.NewTensor(onnxrt.NewShape(src.Shape...), src.Data)
	if err != nil {
		return Logits{}, fmt.Errorf("failed to create source tensor: %w", err)
	}
	defer func() { _ = srcT.Destroy() }()

	tgtT, err := onnxrt.NewTensor(onnxrt.NewShape(onnx.TokenShape(len(tokens))...), tokens)
	if err != nil {
		return Logits{}, fmt.Errorf("failed to create token tensor: %w", err)
	}
	defer func() { _ = tgtT.Destroy() }()

	outputs := []onnxrt.Value{nil}
	if err := m.session.Run([]onnxrt.Value{srcT, tgtT}, outputs); err != nil {
		return Logits{}, fmt.Errorf("inference failed: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			_ = outputs[0].Destroy()
		}
	}()

	ft, ok := outputs[0].(*onnxrt.Tensor[float32])
	if !ok {
		return Logits{}, errors.New("unexpected output tensor type (want float32)")
	}
	return logitsFromShape(ft.GetData(), ft.GetShape(), len(tokens))
}

// logitsFromShape accepts [T,1,V], [1,T,V] or [T,V] and copies the data out
// of runtime-owned memory.
func logitsFromShape(data []float32, shape []int64, steps int) (Logits, error) {
	var classes int
	switch {
	case len(shape) == 3 && int(shape[0]) == steps && shape[1] == 1:
		classes = int(shape[2])
	case len(shape) == 3 && shape[0] == 1 && int(shape[1]) == steps:
		classes = int(shape[2])
	case len(shape) == 2 && int(shape[0]) == steps:
		classes = int(shape[1])
	default:
		return Logits{}, fmt.Errorf("unexpected logits shape %v for %d tokens", shape, steps)
	}
	if classes <= 0 || len(data) != steps*classes {
		return Logits{}, fmt.Errorf("logits data length %d does not match shape %v", len(data), shape)
	}
	return Logits{Data: append([]float32(nil), data...), Steps: steps, Classes: classes}, nil
}

// Close destroys the session.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
