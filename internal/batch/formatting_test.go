package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
)

func sampleBatchResult() *Result {
	first := &pipeline.ImageResult{File: "in/first.png"}
	first.Records = []pipeline.TranscriptionRecord{
		{Index: 0, Polygon: [][2]int{{0, 0}, {10, 0}, {10, 5}, {0, 5}}, Confidence: 0.5, Text: "Привет"},
		{Index: 2, Polygon: [][2]int{{0, 9}, {10, 9}}, Confidence: 1, Text: "мир"},
	}
	first.Skipped = []pipeline.Skip{{Index: 1, Reason: pipeline.SkipEmptyRegion}}
	second := &pipeline.ImageResult{File: "in/second.png"}

	return &Result{
		RunID:  "run-1",
		Inputs: []string{"in/first.png", "in/second.png", "in/third.png"},
		Items: []Item{
			{Source: "in/first.png", Name: "first", Result: first},
			{Source: "in/second.png", Name: "second", Result: second},
		},
		Failures: []Failure{{Source: "in/third.png", Name: "third", Err: errors.New("bad file")}},
		Duration: 2 * time.Second,
		Workers:  2,
	}
}

func TestFormatResults_Text(t *testing.T) {
	out, err := sampleBatchResult().FormatResults("text")
	require.NoError(t, err)
	assert.Equal(t, "# first\nПривет\nмир\n\n# second\n", out)
}

func TestFormatResults_CSV(t *testing.T) {
	out, err := sampleBatchResult().FormatResults("csv")
	require.NoError(t, err)
	assert.Equal(t,
		"image,region_index,bbox_coords,bbox_confidence,predicted_labels\n"+
			"first,0,\"[[0, 0], [10, 0], [10, 5], [0, 5]]\",0.5,Привет\n"+
			"first,2,\"[[0, 9], [10, 9]]\",1.0,мир\n",
		out)
}

func TestFormatResults_JSON(t *testing.T) {
	out, err := sampleBatchResult().FormatResults("json")
	require.NoError(t, err)

	var decoded struct {
		RunID  string `json:"run_id"`
		Images []struct {
			Name string `json:"name"`
			OCR  struct {
				Records []pipeline.TranscriptionRecord `json:"records"`
			} `json:"ocr"`
		} `json:"images"`
		Failures []struct {
			Name  string `json:"name"`
			Error string `json:"error"`
		} `json:"failures"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Images, 2)
	assert.Len(t, decoded.Images[0].OCR.Records, 2)
	require.Len(t, decoded.Failures, 1)
	assert.Equal(t, "bad file", decoded.Failures[0].Error)
}

func TestFormatResults_Unsupported(t *testing.T) {
	_, err := sampleBatchResult().FormatResults("xml")
	require.Error(t, err)
}

func TestSaveResults(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleBatchResult().SaveResults(&buf, "text", ""))
	assert.Contains(t, buf.String(), "# first")

	path := filepath.Join(t.TempDir(), "out.csv")
	buf.Reset()
	require.NoError(t, sampleBatchResult().SaveResults(&buf, "csv", path))
	assert.Empty(t, buf.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "predicted_labels")
}

func TestStatsAndPrint(t *testing.T) {
	r := sampleBatchResult()
	s := r.Stats()
	assert.Equal(t, 3, s.Inputs)
	assert.Equal(t, 2, s.Images)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 1, s.SkippedRegions)
	assert.Equal(t, time.Second, s.AveragePerImage)
	assert.InDelta(t, 1.0, s.ThroughputPerSec, 1e-9)

	var buf bytes.Buffer
	r.PrintStats(&buf)
	out := buf.String()
	assert.Contains(t, out, "Run: run-1")
	assert.Contains(t, out, "Images processed: 2")
	assert.Contains(t, out, "Failed: 1")
	assert.Contains(t, out, "Throughput: 1.0 images/sec")
}
