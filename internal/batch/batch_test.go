package batch

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline/pipelinetest"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/testutil"
)

var errDetect = errors.New("detector exploded")

func newTestConfig(t *testing.T, inputs ...string) Config {
	t.Helper()
	out := t.TempDir()
	cfg := DefaultConfig()
	cfg.Inputs = inputs
	cfg.OutputDir = filepath.Join(out, "output")
	cfg.DumpDir = filepath.Join(out, "dump")
	return cfg
}

func newTestPipeline(det *pipelinetest.Detector) *pipeline.Pipeline {
	if det.Regions == nil {
		det.Regions = []detector.Region{pipelinetest.Rect(2, 2, 30, 20, 0.9)}
	}
	return pipeline.New(det, &pipelinetest.Recognizer{}, 1)
}

func itemNames(items []Item) []string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return names
}

func TestRun_IsolatesFailingImage(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "img1.png", "img2.png", "img3.png")
	det := &pipelinetest.Detector{FailFor: map[string]error{"img2.png": errDetect}}

	res, err := Run(context.Background(), newTestConfig(t, dir), newTestPipeline(det))
	require.NoError(t, err)

	assert.Equal(t, []string{"img1", "img3"}, itemNames(res.Items))
	for _, it := range res.Items {
		require.Len(t, it.Result.Records, 1)
		assert.Equal(t, "28x18", it.Result.Records[0].Text)
	}
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "img2", res.Failures[0].Name)
	assert.ErrorIs(t, res.Failures[0].Err, errDetect)
	assert.Len(t, det.Calls(), 3)
}

func TestRun_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "page.png")
	cfg := newTestConfig(t, dir)
	cfg.DumpBBoxes = true
	cfg.DumpOCR = true

	res, err := Run(context.Background(), cfg, newTestPipeline(&pipelinetest.Detector{}))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	overlay := filepath.Join(cfg.OutputDir, "page_bbox.png")
	csvPath := filepath.Join(cfg.DumpDir, "page_all_bboxes.csv")
	bboxes := filepath.Join(cfg.DumpDir, "page_bboxes.json")
	ocr := filepath.Join(cfg.DumpDir, "page_ocr.json")
	assert.Equal(t, []string{overlay, csvPath, bboxes, ocr}, res.Items[0].Outputs)

	img := testutil.LoadImage(t, overlay)
	assert.Equal(t, image.Rect(0, 0, 64, 32), img.Bounds())

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t,
		"bbox_coords,bbox_confidence,predicted_labels\n"+
			"\"[[2, 2], [30, 2], [30, 20], [2, 20]]\",0.9,28x18\n",
		string(data))

	f, err := os.Open(bboxes)
	require.NoError(t, err)
	defer f.Close()
	regions, err := detector.ReadRegions(f)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.InDelta(t, 0.9, regions[0].Score, 1e-9)

	data, err = os.ReadFile(ocr)
	require.NoError(t, err)
	var dump pipeline.ImageResult
	require.NoError(t, json.Unmarshal(data, &dump))
	require.Len(t, dump.Records, 1)
	assert.Equal(t, [4]int{2, 2, 30, 20}, dump.Records[0].BBox)
}

func TestRun_NoDumpsWithoutDumpDir(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "page.png")
	cfg := newTestConfig(t, dir)
	cfg.DumpDir = ""
	cfg.Overlay = false

	res, err := Run(context.Background(), cfg, newTestPipeline(&pipelinetest.Detector{}))
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Empty(t, res.Items[0].Outputs)
	assert.False(t, testutil.DirExists(cfg.OutputDir))
}

func TestRun_ParallelPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a.png", "b.png", "c.png", "d.png", "e.png", "f.png"}
	testutil.WriteImages(t, dir, names...)
	cfg := newTestConfig(t, dir)
	cfg.Workers = 4

	res, err := Run(context.Background(), cfg, newTestPipeline(&pipelinetest.Detector{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, itemNames(res.Items))
	assert.Equal(t, 4, res.Workers)
	assert.NotEmpty(t, res.RunID)
}

type panicProcessor struct{ target string }

func (p panicProcessor) ProcessImage(_ context.Context, path string, _ image.Image) (*pipeline.ImageResult, error) {
	if filepath.Base(path) == p.target {
		panic("corrupt state")
	}
	return &pipeline.ImageResult{File: path}, nil
}

func TestRun_RecoversPanics(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "one.png", "two.png")

	res, err := Run(context.Background(), newTestConfig(t, dir), panicProcessor{target: "one.png"})
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, itemNames(res.Items))
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Err.Error(), "panic")
}

func TestRun_UnreadableImageFails(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "good.png")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.png"), []byte("not a png"), 0o600))

	res, err := Run(context.Background(), newTestConfig(t, dir), newTestPipeline(&pipelinetest.Detector{}))
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, itemNames(res.Items))
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "bad", res.Failures[0].Name)
}

func TestRun_Cancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "a.png", "b.png")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := Run(ctx, newTestConfig(t, dir), newTestPipeline(&pipelinetest.Detector{}))
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Empty(t, res.Items)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Config{}, newTestPipeline(&pipelinetest.Detector{}))
	require.Error(t, err)

	empty := t.TempDir()
	_, err = Run(context.Background(), newTestConfig(t, empty), newTestPipeline(&pipelinetest.Detector{}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no image files")
}

type recordingProgress struct {
	mu      sync.Mutex
	started int
	steps   []int
	errors  int
	done    bool
}

func (r *recordingProgress) OnStart(total int) { r.started = total }
func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps = append(r.steps, current)
}
func (r *recordingProgress) OnComplete() { r.done = true }
func (r *recordingProgress) OnError(int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors++
}

func TestRun_ReportsProgress(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteImages(t, dir, "x.png", "y.png", "z.png")
	cfg := newTestConfig(t, dir)
	rec := &recordingProgress{}
	cfg.Progress = rec
	det := &pipelinetest.Detector{FailFor: map[string]error{"y.png": errDetect}}

	_, err := Run(context.Background(), cfg, newTestPipeline(det))
	require.NoError(t, err)
	assert.Equal(t, 3, rec.started)
	assert.Equal(t, []int{1, 2, 3}, rec.steps)
	assert.Equal(t, 1, rec.errors)
	assert.True(t, rec.done)
}

func TestProcessInput_BrokenPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 garbage"), 0o600))
	cfg := newTestConfig(t, path)

	out := processInput(context.Background(), &cfg, newTestPipeline(&pipelinetest.Detector{}), path)
	assert.Empty(t, out.items)
	require.Len(t, out.failures, 1)
	assert.Equal(t, "broken", out.failures[0].Name)
	assert.True(t, strings.HasSuffix(out.failures[0].Source, "broken.pdf"))
}
