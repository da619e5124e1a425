package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/onnx"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/recognizer"
)

// Log levels accepted by --log-level.
var LogLevels = []string{"debug", "info", "warn", "error"}

// DefaultConfig returns a configuration with sensible defaults. Model paths
// are left empty and resolved against models_dir.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	return Config{
		ModelsDir: models.DefaultModelsDir,
		LogLevel:  "info",
		Pipeline: PipelineConfig{
			Detector: DetectorConfig{
				Backend:       det.Backend,
				DbThresh:      det.DbThresh,
				BoxThresh:     det.BoxThresh,
				UnclipRatio:   det.UnclipRatio,
				MinBoxSize:    det.MinBoxSize,
				MaxImageSize:  det.MaxImageSize,
				Language:      det.Language,
				SidecarSuffix: det.SidecarSuffix,
			},
			Recognizer:    RecognizerConfig{MaxSteps: recognizer.DefaultMaxSteps},
			RegionWorkers: 1,
		},
		Output: OutputConfig{
			Dir:     "demo/output",
			DumpDir: "demo/dump",
			Overlay: true,
		},
		Batch: BatchConfig{Workers: 1},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     50,
			TimeoutSec:      60,
			ShutdownTimeout: 10,
		},
		GPU: GPUConfig{MemoryLimit: "auto"},
	}
}

// Validate validates the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if !slices.Contains(LogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(LogLevels, ", "))
	}
	if err := validateThreshold(float64(c.Pipeline.Detector.DbThresh), "detector.db_thresh"); err != nil {
		return err
	}
	if err := validateThreshold(float64(c.Pipeline.Detector.BoxThresh), "detector.box_thresh"); err != nil {
		return err
	}
	if c.Pipeline.Recognizer.MaxSteps <= 0 {
		return fmt.Errorf("invalid recognizer max steps: %d (must be positive)", c.Pipeline.Recognizer.MaxSteps)
	}
	if c.Pipeline.RegionWorkers <= 0 {
		return fmt.Errorf("invalid region workers: %d (must be positive)", c.Pipeline.RegionWorkers)
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.RequestsPerMinute < 0 {
		return fmt.Errorf("invalid requests per minute: %d (must be >= 0)", c.Server.RequestsPerMinute)
	}
	if _, err := parseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	return c.toDetectorConfig().Validate()
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() pipeline.Config {
	pc := pipeline.DefaultConfig()
	pc.ModelsDir = models.GetModelsDir(c.ModelsDir)
	pc.Detector = c.toDetectorConfig()
	pc.Recognizer = c.toRecognizerConfig()
	pc.RegionWorkers = c.Pipeline.RegionWorkers
	pc.WarmupIterations = c.Pipeline.WarmupIterations
	return pc
}

func (c *Config) gpuConfig() onnx.GPUConfig {
	g := onnx.DefaultGPUConfig()
	g.UseGPU = c.GPU.Enabled
	g.DeviceID = c.GPU.Device
	if n, err := parseMemoryLimit(c.GPU.MemoryLimit); err == nil {
		g.GPUMemLimit = n
	}
	return g
}

func (c *Config) toDetectorConfig() detector.Config {
	d := c.Pipeline.Detector
	cfg := detector.DefaultConfig()
	cfg.UpdateModelPath(models.GetModelsDir(c.ModelsDir))
	cfg.Backend = strings.ToLower(d.Backend)
	cfg.DbThresh = d.DbThresh
	cfg.BoxThresh = d.BoxThresh
	cfg.UnclipRatio = d.UnclipRatio
	cfg.MinBoxSize = d.MinBoxSize
	cfg.MaxImageSize = d.MaxImageSize
	cfg.NumThreads = d.NumThreads
	cfg.Language = d.Language
	cfg.SidecarDir = d.SidecarDir
	cfg.SidecarSuffix = d.SidecarSuffix
	cfg.GPU = c.gpuConfig()
	if d.ModelPath != "" {
		cfg.ModelPath = d.ModelPath
	}
	return cfg
}

func (c *Config) toRecognizerConfig() recognizer.Config {
	r := c.Pipeline.Recognizer
	cfg := recognizer.DefaultConfig()
	cfg.UpdateModelPath(models.GetModelsDir(c.ModelsDir))
	cfg.MaxSteps = r.MaxSteps
	cfg.NumThreads = r.NumThreads
	cfg.GPU = c.gpuConfig()
	if r.ModelPath != "" {
		cfg.ModelPath = r.ModelPath
	}
	if r.HparamsPath != "" {
		cfg.HparamsPath = r.HparamsPath
	}
	return cfg
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

var memoryUnits = []struct {
	suffix string
	scale  float64
}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}}

// parseMemoryLimit converts "512MB", "1.5GB" and similar into bytes. Empty
// and "auto" mean no limit.
func parseMemoryLimit(limit string) (uint64, error) {
	s := strings.ToUpper(strings.TrimSpace(limit))
	if s == "" || s == "AUTO" {
		return 0, nil
	}
	for _, u := range memoryUnits {
		if num, ok := strings.CutSuffix(s, u.suffix); ok {
			v, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
			if err != nil || v < 0 {
				return 0, fmt.Errorf("invalid number in memory limit: %s", limit)
			}
			return uint64(v * u.scale), nil
		}
	}
	return 0, fmt.Errorf("memory limit must end with one of: B, KB, MB, GB (got %s)", limit)
}
