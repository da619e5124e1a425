package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Batch.Workers)
	assert.Equal(t, 1, cfg.Pipeline.RegionWorkers)
	assert.Equal(t, recognizer.DefaultMaxSteps, cfg.Pipeline.Recognizer.MaxSteps)
	assert.Equal(t, detector.BackendONNX, cfg.Pipeline.Detector.Backend)
	assert.True(t, cfg.Output.Overlay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log level"},
		{"db thresh", func(c *Config) { c.Pipeline.Detector.DbThresh = 1.5 }, "detector.db_thresh"},
		{"box thresh", func(c *Config) { c.Pipeline.Detector.BoxThresh = -1 }, "detector.box_thresh"},
		{"max steps", func(c *Config) { c.Pipeline.Recognizer.MaxSteps = 0 }, "max steps"},
		{"region workers", func(c *Config) { c.Pipeline.RegionWorkers = 0 }, "region workers"},
		{"batch workers", func(c *Config) { c.Batch.Workers = -2 }, "batch workers"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server port"},
		{"upload", func(c *Config) { c.Server.MaxUploadMB = 0 }, "upload"},
		{"timeout", func(c *Config) { c.Server.TimeoutSec = 0 }, "timeout"},
		{"memory", func(c *Config) { c.GPU.MemoryLimit = "lots" }, "memory limit"},
		{"backend", func(c *Config) { c.Pipeline.Detector.Backend = "ouija" }, "unknown detector backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseMemoryLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"", 0, false},
		{"auto", 0, false},
		{"512MB", 512 << 20, false},
		{"1.5gb", 3 << 29, false},
		{"100 KB", 100 << 10, false},
		{"42B", 42, false},
		{"12", 0, true},
		{"xMB", 0, true},
		{"-1GB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMemoryLimit(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToPipelineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/srv/models"
	cfg.Pipeline.Detector.Backend = "SIDECAR"
	cfg.Pipeline.Detector.SidecarDir = "/srv/regions"
	cfg.Pipeline.Recognizer.MaxSteps = 40
	cfg.Pipeline.Recognizer.NumThreads = 2
	cfg.Pipeline.RegionWorkers = 3
	cfg.GPU.Enabled = true
	cfg.GPU.Device = 1
	cfg.GPU.MemoryLimit = "1GB"

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, "/srv/models", pc.ModelsDir)
	assert.Equal(t, detector.BackendSidecar, pc.Detector.Backend)
	assert.Equal(t, "/srv/regions", pc.Detector.SidecarDir)
	assert.Equal(t, filepath.Join("/srv/models", "db_text_det.onnx"), pc.Detector.ModelPath)
	assert.Equal(t, filepath.Join("/srv/models", "ocr_transformer_rn50_64x256_53str.onnx"), pc.Recognizer.ModelPath)
	assert.Equal(t, filepath.Join("/srv/models", "config.json"), pc.Recognizer.HparamsPath)
	assert.Equal(t, 40, pc.Recognizer.MaxSteps)
	assert.Equal(t, 2, pc.Recognizer.NumThreads)
	assert.Equal(t, 3, pc.RegionWorkers)
	assert.True(t, pc.Recognizer.GPU.UseGPU)
	assert.Equal(t, 1, pc.Detector.GPU.DeviceID)
	assert.Equal(t, uint64(1<<30), pc.Recognizer.GPU.GPUMemLimit)
}

func TestToPipelineConfigExplicitPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Recognizer.ModelPath = "/w/rec.onnx"
	cfg.Pipeline.Recognizer.HparamsPath = "/w/hp.json"
	cfg.Pipeline.Detector.ModelPath = "/w/det.onnx"

	pc := cfg.ToPipelineConfig()
	assert.Equal(t, "/w/rec.onnx", pc.Recognizer.ModelPath)
	assert.Equal(t, "/w/hp.json", pc.Recognizer.HparamsPath)
	assert.Equal(t, "/w/det.onnx", pc.Detector.ModelPath)
}
