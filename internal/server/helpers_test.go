package server

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline/pipelinetest"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/testutil"
)

func testConfig() Config {
	return Config{CORSOrigin: "*", MaxUploadMB: 5, TimeoutSec: 30}
}

// newTestServer wires a fake pipeline that finds one region at (2,2)-(30,20).
func newTestServer(t *testing.T, cfg Config) (*Server, *pipeline.Pipeline) {
	t.Helper()
	det := &pipelinetest.Detector{Regions: []detector.Region{pipelinetest.Rect(2, 2, 30, 20, 0.9)}}
	p := pipeline.New(det, &pipelinetest.Recognizer{}, 1)
	srv := NewServer(cfg, p, nil)
	p.SetObserver(srv.Metrics())
	return srv, p
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testutil.SolidImage(64, 32, color.White)))
	return buf.Bytes()
}

// multipartRequest builds a POST with data in field.
func multipartRequest(t *testing.T, target, field, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

// funcProcessor adapts a function to Processor.
type funcProcessor func(ctx context.Context, path string, img image.Image) (*pipeline.ImageResult, error)

func (f funcProcessor) ProcessImage(ctx context.Context, path string, img image.Image) (*pipeline.ImageResult, error) {
	return f(ctx, path, img)
}
