package support

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/cucumber/godog"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/cmd/ocr/cmd"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/config"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline/pipelinetest"
)

// factory returns the pipeline builder used for the scenario: the real one
// when models were requested, otherwise a fake recognizer behind either the
// fake or the sidecar detector.
func (testCtx *TestContext) factory() cmd.ProcessorFactory {
	if testCtx.UseRealModels {
		return cmd.BuildPipeline
	}
	return func(cfg *config.Config, obs pipeline.Observer) (cmd.Processor, error) {
		var det detector.Detector = testCtx.Detector
		if testCtx.UseSidecar {
			d, err := detector.New(cfg.ToPipelineConfig().Detector)
			if err != nil {
				return nil, err
			}
			det = d
		}
		p := pipeline.New(det, &pipelinetest.Recognizer{}, cfg.Pipeline.RegionWorkers)
		p.SetObserver(obs)
		return p, nil
	}
}

// iRunCommand executes a cyrocr command line in-process.
func (testCtx *TestContext) iRunCommand(command string) error {
	args := strings.Fields(command)
	if len(args) > 0 && args[0] == "cyrocr" {
		args = args[1:]
	}
	root := cmd.NewRootCommandWithFactory(testCtx.factory())
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	testCtx.LastCommand = command
	testCtx.LastError = root.Execute()
	testCtx.LastOutput = stdout.String()
	testCtx.LastStderr = stderr.String()
	testCtx.LastExitCode = 0
	if testCtx.LastError != nil {
		testCtx.LastExitCode = 1
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldSucceed() error {
	if testCtx.LastError != nil {
		return fmt.Errorf("command %q failed: %w\nstderr:\n%s", testCtx.LastCommand, testCtx.LastError, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theCommandShouldFail() error {
	if testCtx.LastError == nil {
		return fmt.Errorf("command %q succeeded, expected failure", testCtx.LastCommand)
	}
	return nil
}

func (testCtx *TestContext) theErrorShouldMention(text string) error {
	if testCtx.LastError == nil {
		return errors.New("no error was returned")
	}
	if !strings.Contains(testCtx.LastError.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", testCtx.LastError, text)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output does not contain %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(testCtx.LastOutput, text) {
		return fmt.Errorf("output unexpectedly contains %q:\n%s", text, testCtx.LastOutput)
	}
	return nil
}

func (testCtx *TestContext) theErrorOutputShouldContain(text string) error {
	if !strings.Contains(testCtx.LastStderr, text) {
		return fmt.Errorf("stderr does not contain %q:\n%s", text, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidJSON() error {
	var v any
	if err := json.Unmarshal([]byte(testCtx.LastOutput), &v); err != nil {
		return fmt.Errorf("output is not valid JSON: %w", err)
	}
	return nil
}

func (testCtx *TestContext) theOutputShouldBeValidCSVWithRows(rows int) error {
	records, err := csv.NewReader(strings.NewReader(testCtx.LastOutput)).ReadAll()
	if err != nil {
		return fmt.Errorf("output is not valid CSV: %w", err)
	}
	// header plus data rows
	if len(records) != rows+1 {
		return fmt.Errorf("expected %d data rows, got %d", rows, len(records)-1)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldExist(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected file %s: %w", path, err)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldNotExist(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("file %s should not exist", path)
	}
	return nil
}

func (testCtx *TestContext) theFileShouldContain(path, text string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: scenario-controlled path
	if err != nil {
		return err
	}
	if !strings.Contains(string(data), text) {
		return fmt.Errorf("%s does not contain %q:\n%s", path, text, data)
	}
	return nil
}

func (testCtx *TestContext) theEnvironmentVariableIsSetTo(name, value string) error {
	return testCtx.SetEnv(name, value)
}

func (testCtx *TestContext) aConfigFileWith(name string, body *godog.DocString) error {
	return os.WriteFile(name, []byte(body.Content), 0o600)
}

// RegisterCommonSteps registers command execution and output steps.
func (testCtx *TestContext) RegisterCommonSteps(sc *godog.ScenarioContext) {
	sc.Step(`^I run "([^"]*)"$`, testCtx.iRunCommand)
	sc.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
	sc.Step(`^the command should fail$`, testCtx.theCommandShouldFail)
	sc.Step(`^the error should mention "([^"]*)"$`, testCtx.theErrorShouldMention)
	sc.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	sc.Step(`^the error output should contain "([^"]*)"$`, testCtx.theErrorOutputShouldContain)
	sc.Step(`^the output should be valid JSON$`, testCtx.theOutputShouldBeValidJSON)
	sc.Step(`^the output should be valid CSV with (\d+) rows?$`, testCtx.theOutputShouldBeValidCSVWithRows)
	sc.Step(`^the file "([^"]*)" should exist$`, testCtx.theFileShouldExist)
	sc.Step(`^the file "([^"]*)" should not exist$`, testCtx.theFileShouldNotExist)
	sc.Step(`^the file "([^"]*)" should contain "([^"]*)"$`, testCtx.theFileShouldContain)
	sc.Step(`^the environment variable "([^"]*)" is set to "([^"]*)"$`, testCtx.theEnvironmentVariableIsSetTo)
	sc.Step(`^a config file "([^"]*)" with:$`, testCtx.aConfigFileWith)
}
