package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "cyrocr"

	// EnvPrefix is the prefix for environment variables.
	EnvPrefix = "CYROCR"

	// DotEnvFile is loaded from the working directory when present.
	DotEnvFile = ".env"
)

// Loader handles loading configuration from various sources.
type Loader struct {
	v       *viper.Viper
	envFile string
}

// NewLoader uses the global viper instance so cobra flag bindings apply.
func NewLoader() *Loader {
	return &Loader{v: viper.GetViper(), envFile: DotEnvFile}
}

// NewLoaderWithViper uses an isolated viper instance.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{v: v, envFile: DotEnvFile}
}

// WithEnvFile overrides the dotenv file; empty disables it.
func (l *Loader) WithEnvFile(path string) *Loader {
	l.envFile = path
	return l
}

// Load reads configuration from the search paths and validates it.
func (l *Loader) Load() (*Config, error) {
	return l.LoadWithFile("")
}

// LoadWithFile reads configFile, or searches the standard paths when empty,
// and validates the result.
func (l *Loader) LoadWithFile(configFile string) (*Config, error) {
	cfg, err := l.LoadWithFileWithoutValidation(configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithFileWithoutValidation is LoadWithFile minus validation.
func (l *Loader) LoadWithFileWithoutValidation(configFile string) (*Config, error) {
	if err := l.loadDotEnv(); err != nil {
		return nil, err
	}
	l.setupEnvironmentVariables()
	l.setDefaults()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", configFile)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		for _, p := range GetConfigSearchPaths() {
			l.v.AddConfigPath(p)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// loadDotEnv exports variables from the dotenv file without overriding
// variables that are already set.
func (l *Loader) loadDotEnv() error {
	if l.envFile == "" {
		return nil
	}
	if err := godotenv.Load(l.envFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", l.envFile, err)
	}
	return nil
}

func (l *Loader) setupEnvironmentVariables() {
	l.v.SetEnvPrefix(EnvPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func (l *Loader) setDefaults() {
	d := DefaultConfig()

	l.v.SetDefault("models_dir", d.ModelsDir)
	l.v.SetDefault("log_level", d.LogLevel)
	l.v.SetDefault("verbose", d.Verbose)

	det := d.Pipeline.Detector
	l.v.SetDefault("pipeline.detector.backend", det.Backend)
	l.v.SetDefault("pipeline.detector.model_path", det.ModelPath)
	l.v.SetDefault("pipeline.detector.db_thresh", det.DbThresh)
	l.v.SetDefault("pipeline.detector.box_thresh", det.BoxThresh)
	l.v.SetDefault("pipeline.detector.unclip_ratio", det.UnclipRatio)
	l.v.SetDefault("pipeline.detector.min_box_size", det.MinBoxSize)
	l.v.SetDefault("pipeline.detector.max_image_size", det.MaxImageSize)
	l.v.SetDefault("pipeline.detector.num_threads", det.NumThreads)
	l.v.SetDefault("pipeline.detector.language", det.Language)
	l.v.SetDefault("pipeline.detector.sidecar_dir", det.SidecarDir)
	l.v.SetDefault("pipeline.detector.sidecar_suffix", det.SidecarSuffix)

	rec := d.Pipeline.Recognizer
	l.v.SetDefault("pipeline.recognizer.model_path", rec.ModelPath)
	l.v.SetDefault("pipeline.recognizer.hparams_path", rec.HparamsPath)
	l.v.SetDefault("pipeline.recognizer.max_steps", rec.MaxSteps)
	l.v.SetDefault("pipeline.recognizer.num_threads", rec.NumThreads)
	l.v.SetDefault("pipeline.region_workers", d.Pipeline.RegionWorkers)
	l.v.SetDefault("pipeline.warmup_iterations", d.Pipeline.WarmupIterations)

	l.v.SetDefault("output.dir", d.Output.Dir)
	l.v.SetDefault("output.dump_dir", d.Output.DumpDir)
	l.v.SetDefault("output.dump_bboxes", d.Output.DumpBBoxes)
	l.v.SetDefault("output.dump_ocr", d.Output.DumpOCR)
	l.v.SetDefault("output.overlay", d.Output.Overlay)

	l.v.SetDefault("batch.workers", d.Batch.Workers)
	l.v.SetDefault("batch.recursive", d.Batch.Recursive)
	l.v.SetDefault("batch.pdf_pages", d.Batch.PDFPages)
	l.v.SetDefault("batch.pdf_password", d.Batch.PDFPassword)

	l.v.SetDefault("server.host", d.Server.Host)
	l.v.SetDefault("server.port", d.Server.Port)
	l.v.SetDefault("server.cors_origin", d.Server.CORSOrigin)
	l.v.SetDefault("server.max_upload_mb", d.Server.MaxUploadMB)
	l.v.SetDefault("server.timeout_sec", d.Server.TimeoutSec)
	l.v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	l.v.SetDefault("server.requests_per_minute", d.Server.RequestsPerMinute)

	l.v.SetDefault("gpu.enabled", d.GPU.Enabled)
	l.v.SetDefault("gpu.device", d.GPU.Device)
	l.v.SetDefault("gpu.memory_limit", d.GPU.MemoryLimit)
}

// GetViper returns the underlying viper instance.
func (l *Loader) GetViper() *viper.Viper { return l.v }

// GetConfigFileUsed returns the path of the config file used.
func (l *Loader) GetConfigFileUsed() string { return l.v.ConfigFileUsed() }

// GetConfigSearchPaths returns the directories searched for cyrocr.yaml.
func GetConfigSearchPaths() []string {
	paths := []string{"."}
	if dir, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok {
		paths = append(paths, filepath.Join(dir, ConfigFileName))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", ConfigFileName))
	}
	return append(paths, filepath.Join("/etc", ConfigFileName))
}
