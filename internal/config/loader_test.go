package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return NewLoaderWithViper(viper.New())
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := newTestLoader(t).Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadYAMLFile(t *testing.T) {
	l := newTestLoader(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: debug
models_dir: /custom/models
pipeline:
  detector:
    backend: sidecar
    sidecar_suffix: .boxes.json
  recognizer:
    max_steps: 64
  region_workers: 4
output:
  dump_bboxes: true
batch:
  workers: 3
`), 0o600))

	cfg, err := l.LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/custom/models", cfg.ModelsDir)
	assert.Equal(t, "sidecar", cfg.Pipeline.Detector.Backend)
	assert.Equal(t, ".boxes.json", cfg.Pipeline.Detector.SidecarSuffix)
	assert.Equal(t, 64, cfg.Pipeline.Recognizer.MaxSteps)
	assert.Equal(t, 4, cfg.Pipeline.RegionWorkers)
	assert.True(t, cfg.Output.DumpBBoxes)
	assert.Equal(t, 3, cfg.Batch.Workers)
	// untouched keys keep defaults
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, l.GetConfigFileUsed(), path)
}

func TestLoadSearchPath(t *testing.T) {
	l := newTestLoader(t)
	require.NoError(t, os.WriteFile(ConfigFileName+".yaml", []byte("server:\n  port: 9191\n"), 0o600))
	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadEnvironment(t *testing.T) {
	l := newTestLoader(t)
	t.Setenv("CYROCR_LOG_LEVEL", "warn")
	t.Setenv("CYROCR_BATCH_WORKERS", "6")
	t.Setenv("CYROCR_PIPELINE_DETECTOR_DB_THRESH", "0.4")

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 6, cfg.Batch.Workers)
	assert.InDelta(t, 0.4, cfg.Pipeline.Detector.DbThresh, 1e-6)
}

func TestLoadDotEnv(t *testing.T) {
	l := newTestLoader(t)
	require.NoError(t, os.WriteFile(DotEnvFile, []byte("CYROCR_SERVER_PORT=7070\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("CYROCR_SERVER_PORT") })

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadDotEnvDoesNotOverride(t *testing.T) {
	l := newTestLoader(t)
	t.Setenv("CYROCR_SERVER_PORT", "6060")
	require.NoError(t, os.WriteFile(DotEnvFile, []byte("CYROCR_SERVER_PORT=7070\n"), 0o600))

	cfg, err := l.Load()
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadErrors(t *testing.T) {
	l := newTestLoader(t)
	_, err := l.LoadWithFile("/does/not/exist.yaml")
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("log_level: [unclosed"), 0o600))
	_, err = newTestLoader(t).LoadWithFile(bad)
	require.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("batch:\n  workers: 0\n"), 0o600))
	_, err = newTestLoader(t).LoadWithFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")

	cfg, err := newTestLoader(t).LoadWithFileWithoutValidation(invalid)
	require.NoError(t, err)
	assert.Zero(t, cfg.Batch.Workers)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Batch.PDFPassword = "secret"
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.Contains(t, string(out), "region_workers: 1")
}

func TestGetConfigSearchPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	assert.Equal(t, []string{".", "/xdg/cyrocr", "/etc/cyrocr"}, GetConfigSearchPaths())
}
