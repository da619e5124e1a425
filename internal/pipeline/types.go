package pipeline

import (
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
)

// Skip reasons.
const (
	SkipEmptyRegion       = "empty_region"
	SkipRecognitionFailed = "recognition_failed"
)

// TranscriptionRecord is the recognized text of one region.
type TranscriptionRecord struct {
	// Index is the region's position in reading order, counting skipped
	// regions.
	Index int `json:"index"`
	// Polygon holds the detector vertices truncated to integers.
	Polygon [][2]int `json:"polygon"`
	// BBox is the truncated bounding box as x1, y1, x2, y2 before clipping.
	BBox       [4]int  `json:"bbox"`
	Confidence float64 `json:"confidence"`
	Text       string  `json:"text"`
	Steps      int     `json:"steps"`
	Terminated bool    `json:"terminated"`
}

// Skip records a region that produced no record.
type Skip struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}

// ImageResult is everything the pipeline produced for one image.
type ImageResult struct {
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// Regions are the detections in reading order, skipped ones included.
	Regions []detector.Region     `json:"-"`
	Records []TranscriptionRecord `json:"records"`
	Skipped []Skip                `json:"skipped,omitempty"`

	Processing struct {
		DetectionNs   int64 `json:"detection_ns"`
		RecognitionNs int64 `json:"recognition_ns"`
		TotalNs       int64 `json:"total_ns"`
	} `json:"processing"`
}

// Texts returns the transcripts in reading order.
func (r *ImageResult) Texts() []string {
	out := make([]string, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.Text
	}
	return out
}
