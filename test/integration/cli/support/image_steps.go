package support

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline/pipelinetest"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/testutil"
)

func writeImage(path string, w, h int) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return imaging.Save(testutil.SolidImage(w, h, color.White), path)
}

func (testCtx *TestContext) anImage(path string) error {
	return writeImage(path, 64, 32)
}

func (testCtx *TestContext) anImageOfSize(path string, w, h int) error {
	return writeImage(path, w, h)
}

func (testCtx *TestContext) theImages(list string) error {
	for _, p := range strings.Split(list, ",") {
		if err := writeImage(strings.TrimSpace(p), 64, 32); err != nil {
			return err
		}
	}
	return nil
}

func (testCtx *TestContext) aFileWithContent(path, content string) error {
	if err := testutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o600)
}

func (testCtx *TestContext) theDetectorFindsARegion(x0, y0, x1, y1 int, score float64) error {
	testCtx.AddRegion(pipelinetest.Rect(x0, y0, x1, y1, score))
	return nil
}

func (testCtx *TestContext) theDetectorFailsFor(name string) error {
	if testCtx.Detector.FailFor == nil {
		testCtx.Detector.FailFor = map[string]error{}
	}
	testCtx.Detector.FailFor[name] = errors.New("detector failure for " + name)
	return nil
}

// aSidecarFileFor writes <stem>.regions.json next to the image and switches
// the scenario to the sidecar detector backend.
func (testCtx *TestContext) aSidecarFileFor(imagePath string, x0, y0, x1, y1 int, score float64) error {
	sd := detector.NewSidecarDetector(detector.DefaultConfig())
	f, err := os.Create(sd.PathFor(imagePath)) //nolint:gosec // G304: scenario-controlled path
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	testCtx.UseSidecar = true
	return detector.WriteRegions(f, filepath.Base(imagePath), []detector.Region{pipelinetest.Rect(x0, y0, x1, y1, score)})
}

// theRealModelsAreUsed builds the ONNX pipeline from the given models
// directory instead of the fakes.
func (testCtx *TestContext) theRealModelsAreUsedFrom(dir string) error {
	testCtx.UseRealModels = true
	return testCtx.SetEnv(models.EnvModelsDir, dir)
}

func (testCtx *TestContext) theDetectorShouldHaveBeenCalledTimes(n int) error {
	if got := len(testCtx.Detector.Calls()); got != n {
		return fmt.Errorf("detector called %d times, expected %d", got, n)
	}
	return nil
}

// RegisterImageSteps registers fixture and detector steps.
func (testCtx *TestContext) RegisterImageSteps(sc *godog.ScenarioContext) {
	sc.Step(`^an image "([^"]*)"$`, testCtx.anImage)
	sc.Step(`^an image "([^"]*)" of (\d+)x(\d+) pixels$`, testCtx.anImageOfSize)
	sc.Step(`^the images "([^"]*)"$`, testCtx.theImages)
	sc.Step(`^a file "([^"]*)" containing "([^"]*)"$`, testCtx.aFileWithContent)
	sc.Step(`^the detector finds a region from (\d+),(\d+) to (\d+),(\d+) with score ([0-9.]+)$`,
		testCtx.theDetectorFindsARegion)
	sc.Step(`^the detector fails for "([^"]*)"$`, testCtx.theDetectorFailsFor)
	sc.Step(`^a sidecar file for "([^"]*)" with a region from (\d+),(\d+) to (\d+),(\d+) with score ([0-9.]+)$`,
		testCtx.aSidecarFileFor)
	sc.Step(`^the real models are used from "([^"]*)"$`, testCtx.theRealModelsAreUsedFrom)
	sc.Step(`^the detector should have been called (\d+) times?$`, testCtx.theDetectorShouldHaveBeenCalledTimes)
}
