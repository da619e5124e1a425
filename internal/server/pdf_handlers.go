package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pdf"
)

// ocrPDFHandler transcribes every embedded image of the multipart field
// "pdf". An optional "pages" value narrows the pages, e.g. "1-3,7". One image
// failing does not fail the request.
func (s *Server) ocrPDFHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.proc == nil {
		s.writeErrorResponse(w, r, "OCR pipeline not initialized", http.StatusServiceUnavailable)
		return
	}

	file, header, ok := s.readUpload(w, r, "pdf")
	if !ok {
		return
	}
	defer func() { _ = file.Close() }()

	// pdfcpu reads from disk
	tmp, err := os.CreateTemp("", "cyrocr-upload-*.pdf")
	if err != nil {
		s.writeErrorResponse(w, r, "Failed to buffer upload", http.StatusInternalServerError)
		return
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := io.Copy(tmp, file); err != nil {
		_ = tmp.Close()
		s.writeErrorResponse(w, r, "Failed to buffer upload", http.StatusInternalServerError)
		return
	}
	if err := tmp.Close(); err != nil {
		s.writeErrorResponse(w, r, "Failed to buffer upload", http.StatusInternalServerError)
		return
	}

	pages, err := pdf.ExtractImages(tmp.Name(), pdf.Options{Pages: r.FormValue("pages"), Password: r.FormValue("password")})
	if err != nil {
		s.writeErrorResponse(w, r, fmt.Sprintf("PDF extraction failed: %v", err), http.StatusBadRequest)
		return
	}

	stem := filepath.Base(header.Filename)
	stem = stem[:len(stem)-len(filepath.Ext(stem))]
	resp := PDFResponse{
		Success:   true,
		RequestID: RequestID(r.Context()),
		Filename:  header.Filename,
		Images:    make([]PDFImageResult, 0, len(pages)),
	}
	for _, p := range pages {
		if err := r.Context().Err(); err != nil {
			s.writeProcessingError(w, r, err)
			return
		}
		item := PDFImageResult{Page: p.Page, Index: p.Index}
		res, err := s.processDecoded(r.Context(), p.Name(stem), p.Image)
		if err != nil {
			slog.Error("PDF image failed", "file", header.Filename, "page", p.Page, "index", p.Index, "error", err)
			item.Error = err.Error()
		} else {
			item.Result = res
		}
		resp.Images = append(resp.Images, item)
	}
	writeJSON(w, http.StatusOK, resp)
}
