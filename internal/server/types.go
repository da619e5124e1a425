// Package server exposes the OCR pipeline over HTTP and WebSocket.
package server

import (
	"context"
	"image"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
)

// Processor transcribes one image. *pipeline.Pipeline implements it.
type Processor interface {
	ProcessImage(ctx context.Context, path string, img image.Image) (*pipeline.ImageResult, error)
}

// Server holds the HTTP server state and dependencies.
type Server struct {
	proc        Processor
	metrics     *Metrics
	rateLimiter *RateLimiter
	corsOrigin  string
	maxUploadMB int64
	timeout     time.Duration
}

// Config holds server configuration.
type Config struct {
	Host        string
	Port        int
	CORSOrigin  string
	MaxUploadMB int64
	TimeoutSec  int
	// RequestsPerMinute limits OCR requests per client; 0 disables limiting.
	RequestsPerMinute int
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Time    string            `json:"time"`
	Memory  pipeline.MemStats `json:"memory"`
}

// OCRResponse wraps the result of POST /v1/ocr.
type OCRResponse struct {
	Success   bool                  `json:"success"`
	RequestID string                `json:"request_id,omitempty"`
	Result    *pipeline.ImageResult `json:"result,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// PDFImageResult is one embedded image of an uploaded PDF.
type PDFImageResult struct {
	Page   int                   `json:"page"`
	Index  int                   `json:"index"`
	Result *pipeline.ImageResult `json:"result,omitempty"`
	Error  string                `json:"error,omitempty"`
}

// PDFResponse wraps the result of POST /v1/ocr/pdf.
type PDFResponse struct {
	Success   bool             `json:"success"`
	RequestID string           `json:"request_id,omitempty"`
	Filename  string           `json:"filename"`
	Images    []PDFImageResult `json:"images"`
}

// NewServer creates a server around an already built processor. metrics may
// be nil, in which case a private registry is used.
func NewServer(cfg Config, proc Processor, metrics *Metrics) *Server {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	s := &Server{
		proc:        proc,
		metrics:     metrics,
		corsOrigin:  cfg.CORSOrigin,
		maxUploadMB: cfg.MaxUploadMB,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}
	if s.corsOrigin == "" {
		s.corsOrigin = "*"
	}
	if s.maxUploadMB <= 0 {
		s.maxUploadMB = 50
	}
	if cfg.RequestsPerMinute > 0 {
		s.rateLimiter = NewRateLimiter(cfg.RequestsPerMinute, time.Minute)
	}
	return s
}

// Metrics returns the server's metric set.
func (s *Server) Metrics() *Metrics { return s.metrics }

func (s *Server) maxUploadBytes() int64 { return s.maxUploadMB << 20 }
