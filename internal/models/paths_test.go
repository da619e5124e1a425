package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetModelsDir(t *testing.T) {
	t.Run("explicit directory takes precedence", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/env/path")
		assert.Equal(t, "/explicit/path", GetModelsDir("/explicit/path"))
	})
	t.Run("environment variable used when no explicit dir", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "/env/path")
		assert.Equal(t, "/env/path", GetModelsDir(""))
	})
	t.Run("project root default", func(t *testing.T) {
		t.Setenv(EnvModelsDir, "")
		got := GetModelsDir("")
		assert.Equal(t, DefaultModelsDir, filepath.Base(got))
	})
}

func TestResolveModelPath_PrefersOrganizedLayout(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, RecognitionTransformer), GetRecognitionModelPath(dir))

	organized := filepath.Join(dir, TypeRecognition, RecognitionTransformer)
	require.NoError(t, os.MkdirAll(filepath.Dir(organized), 0o750))
	require.NoError(t, os.WriteFile(organized, []byte("x"), 0o644))
	assert.Equal(t, organized, GetRecognitionModelPath(dir))
}

func TestArtifactPaths(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, RecognitionHparams), GetHparamsPath(dir))
	assert.Equal(t, filepath.Join(dir, DetectionDB), GetDetectionModelPath(dir))
}

func TestValidateModelExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "m.onnx")
	assert.Error(t, ValidateModelExists(p))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	assert.NoError(t, ValidateModelExists(p))
}

func TestListAvailableModels(t *testing.T) {
	list := ListAvailableModels()
	require.Len(t, list, 3)
	for _, m := range list {
		assert.NotEmpty(t, m.Filename)
		assert.Contains(t, []string{TypeDetection, TypeRecognition}, m.Type)
	}
}
