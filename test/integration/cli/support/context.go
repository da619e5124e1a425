// Package support holds the godog step definitions for the cyrocr CLI
// feature tests. Commands run in-process against a fresh command tree.
package support

import (
	"errors"
	"fmt"
	"os"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline/pipelinetest"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int

	// Test environment
	WorkingDir  string
	TempDir     string
	previousEnv map[string]*string

	// Pipeline doubles
	Detector      *pipelinetest.Detector
	UseSidecar    bool
	UseRealModels bool

	// HTTP state
	HTTPTestServer     *HTTPTestServerWrapper
	LastHTTPStatusCode int
	LastHTTPResponse   string
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a scenario context rooted in a fresh temporary
// directory, which also becomes the working directory.
func NewTestContext() (*TestContext, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	tmp, err := os.MkdirTemp("", "cyrocr-features-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	if err := os.Chdir(tmp); err != nil {
		return nil, fmt.Errorf("failed to enter temp dir: %w", err)
	}
	testCtx := &TestContext{
		WorkingDir:  wd,
		TempDir:     tmp,
		previousEnv: map[string]*string{},
		Detector:    &pipelinetest.Detector{},
	}
	if err := testCtx.SetEnv("XDG_CONFIG_HOME", tmp); err != nil {
		return nil, err
	}
	return testCtx, nil
}

// SetEnv sets an environment variable for the rest of the scenario.
func (testCtx *TestContext) SetEnv(name, value string) error {
	if _, seen := testCtx.previousEnv[name]; !seen {
		if old, ok := os.LookupEnv(name); ok {
			testCtx.previousEnv[name] = &old
		} else {
			testCtx.previousEnv[name] = nil
		}
	}
	return os.Setenv(name, value)
}

// AddRegion makes the fake detector return one more region.
func (testCtx *TestContext) AddRegion(r detector.Region) {
	testCtx.Detector.Regions = append(testCtx.Detector.Regions, r)
}

// Cleanup restores the environment and working directory and removes the
// scenario's files.
func (testCtx *TestContext) Cleanup() error {
	var errs []error
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Close()
		testCtx.HTTPTestServer = nil
	}
	for name, old := range testCtx.previousEnv {
		if old == nil {
			errs = append(errs, os.Unsetenv(name))
		} else {
			errs = append(errs, os.Setenv(name, *old))
		}
	}
	errs = append(errs, os.Chdir(testCtx.WorkingDir), os.RemoveAll(testCtx.TempDir))
	return errors.Join(errs...)
}
