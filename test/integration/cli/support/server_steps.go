package support

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/cucumber/godog"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline/pipelinetest"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/server"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/testutil"
)

// HTTPTestServerWrapper runs the OCR server over the scenario's fake
// detector.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Pipeline   *pipeline.Pipeline
}

// Close stops the HTTP server and releases the pipeline.
func (w *HTTPTestServerWrapper) Close() {
	w.Server.Close()
	_ = w.Pipeline.Close()
}

func (testCtx *TestContext) theServerIsRunning() error {
	return testCtx.startServer(server.Config{MaxUploadMB: 1, TimeoutSec: 10})
}

func (testCtx *TestContext) theServerIsRunningWithARateLimitOf(n int) error {
	return testCtx.startServer(server.Config{MaxUploadMB: 1, TimeoutSec: 10, RequestsPerMinute: n})
}

func (testCtx *TestContext) startServer(cfg server.Config) error {
	p := pipeline.New(testCtx.Detector, &pipelinetest.Recognizer{}, 1)
	srv := server.NewServer(cfg, p, nil)
	p.SetObserver(srv.Metrics())
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(srv.Handler()),
		TestServer: srv,
		Pipeline:   p,
	}
	return nil
}

func (testCtx *TestContext) record(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = map[string]string{}
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iGET(path string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	resp, err := http.Get(testCtx.HTTPTestServer.Server.URL + path) //nolint:noctx
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) iPOSTAnImageTo(path string) error {
	if testCtx.HTTPTestServer == nil {
		return fmt.Errorf("server is not running")
	}
	var img bytes.Buffer
	if err := png.Encode(&img, testutil.SolidImage(64, 32, color.White)); err != nil {
		return err
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "upload.png")
	if err != nil {
		return err
	}
	if _, err := fw.Write(img.Bytes()); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	resp, err := http.Post(testCtx.HTTPTestServer.Server.URL+path, mw.FormDataContentType(), &body) //nolint:noctx
	if err != nil {
		return err
	}
	return testCtx.record(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("status %d, expected %d: %s", testCtx.LastHTTPStatusCode, code, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain %q:\n%s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldHaveRecords(n int) error {
	var resp server.OCRResponse
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &resp); err != nil {
		return fmt.Errorf("invalid JSON response: %w", err)
	}
	if resp.Result == nil {
		return fmt.Errorf("response has no result: %s", testCtx.LastHTTPResponse)
	}
	if got := len(resp.Result.Records); got != n {
		return fmt.Errorf("got %d records, expected %d", got, n)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBeSet(name string) error {
	if testCtx.LastHTTPHeaders[name] == "" {
		return fmt.Errorf("header %s is missing", name)
	}
	return nil
}

// RegisterServerSteps registers HTTP API steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the server is running$`, testCtx.theServerIsRunning)
	sc.Step(`^the server is running with a rate limit of (\d+) requests per minute$`,
		testCtx.theServerIsRunningWithARateLimitOf)
	sc.Step(`^I GET "([^"]*)"$`, testCtx.iGET)
	sc.Step(`^I POST an image to "([^"]*)"$`, testCtx.iPOSTAnImageTo)
	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response should have (\d+) records?$`, testCtx.theResponseShouldHaveRecords)
	sc.Step(`^the response header "([^"]*)" should be set$`, testCtx.theResponseHeaderShouldBeSet)
}
