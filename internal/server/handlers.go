package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/version"
)

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatText = "text"
)

// SetupRoutes configures the HTTP routes.
func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.middleware("/health", s.healthHandler))
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/v1/ocr", s.middleware("/v1/ocr", s.rateLimitMiddleware(s.timeoutMiddleware(s.ocrHandler))))
	mux.HandleFunc("/v1/ocr/pdf", s.middleware("/v1/ocr/pdf", s.rateLimitMiddleware(s.timeoutMiddleware(s.ocrPDFHandler))))
	mux.HandleFunc("/ws/ocr", s.middleware("/ws/ocr", s.ocrWebSocketHandler))
}

// Handler returns a mux with every route installed.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return mux
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	v, _, _ := version.Info()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: v,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Memory:  pipeline.GetMemStats(),
	})
}

// ocrHandler transcribes the multipart field "image". The response is JSON
// unless format=csv or format=text is given.
func (s *Server) ocrHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.proc == nil {
		s.writeErrorResponse(w, r, "OCR pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	file, header, ok := s.readUpload(w, r, "image")
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	img, _, err := utils.DecodeImage(file)
	if err != nil {
		s.writeErrorResponse(w, r, "Invalid image format", http.StatusBadRequest)
		return
	}

	res, err := s.processDecoded(r.Context(), header.Filename, img)
	if err != nil {
		s.writeProcessingError(w, r, err)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = r.URL.Query().Get("format")
	}
	switch format {
	case formatCSV:
		out, err := pipeline.ToCSVImage(res)
		if err != nil {
			s.writeErrorResponse(w, r, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		_, _ = io.WriteString(w, out)
	case formatText:
		out, err := pipeline.ToPlainTextImage(res)
		if err != nil {
			s.writeErrorResponse(w, r, fmt.Sprintf("formatting failed: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, out)
	case "", formatJSON:
		writeJSON(w, http.StatusOK, OCRResponse{Success: true, RequestID: RequestID(r.Context()), Result: res})
	default:
		s.writeErrorResponse(w, r, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
	}
}

// readUpload parses the multipart body and opens field. On failure the error
// response has already been written.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	limit := s.maxUploadBytes()
	if r.ContentLength > limit {
		s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		return nil, nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeErrorResponse(w, r, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, r, "Failed to parse form data", http.StatusBadRequest)
		}
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("No %s file provided", field), http.StatusBadRequest)
		return nil, nil, false
	}
	s.metrics.uploadSizeBytes.Observe(float64(header.Size))
	return file, header, true
}

func (s *Server) writeProcessingError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		s.writeErrorResponse(w, r, "OCR processing timed out", http.StatusGatewayTimeout)
	case errors.Is(err, context.Canceled):
		// client went away
		slog.Info("Request cancelled", "request_id", RequestID(r.Context()))
	default:
		s.writeErrorResponse(w, r, fmt.Sprintf("OCR processing failed: %v", err), http.StatusInternalServerError)
	}
}

// processDecoded runs the processor, converting a panic into an error.
func (s *Server) processDecoded(ctx context.Context, name string, img image.Image) (res *pipeline.ImageResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while processing %s: %v", name, p)
		}
	}()
	return s.proc.ProcessImage(ctx, name, img)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	writeJSON(w, statusCode, OCRResponse{Success: false, RequestID: RequestID(r.Context()), Error: message})
}
