package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
)

// GetProjectRoot returns the project root directory by finding go.mod.
func GetProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", errors.New("failed to get caller information")
	}
	dir := filepath.Dir(filename)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find go.mod file starting from %s", filepath.Dir(filename))
}

// GetModelsDir returns the models directory used by integration tests.
func GetModelsDir(t *testing.T) string {
	t.Helper()
	if env := os.Getenv(models.EnvModelsDir); env != "" {
		return env
	}
	root, err := GetProjectRoot()
	require.NoError(t, err, "Failed to find project root")
	return filepath.Join(root, models.DefaultModelsDir)
}

// RequireModels skips the test under -short or when the recognizer weights
// and hyperparameters are not installed. It returns the models directory.
func RequireModels(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping model test in short mode")
	}
	dir := GetModelsDir(t)
	for _, p := range []string{models.GetRecognitionModelPath(dir), models.GetHparamsPath(dir)} {
		if !FileExists(p) {
			t.Skipf("model artifact not available: %s", p)
		}
	}
	return dir
}

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// DirExists checks if a directory exists.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
