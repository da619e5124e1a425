//nolint:lll
package config

// Config is the complete application configuration. Values come from, in
// increasing priority: defaults, a config file, .env, CYROCR_* environment
// variables and command-line flags.
type Config struct {
	ModelsDir string `mapstructure:"models_dir" yaml:"models_dir" json:"models_dir"`
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose   bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	Pipeline PipelineConfig `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
	Output   OutputConfig   `mapstructure:"output" yaml:"output" json:"output"`
	Batch    BatchConfig    `mapstructure:"batch" yaml:"batch" json:"batch"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	GPU      GPUConfig      `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// PipelineConfig contains OCR pipeline settings.
type PipelineConfig struct {
	Detector         DetectorConfig   `mapstructure:"detector" yaml:"detector" json:"detector"`
	Recognizer       RecognizerConfig `mapstructure:"recognizer" yaml:"recognizer" json:"recognizer"`
	RegionWorkers    int              `mapstructure:"region_workers" yaml:"region_workers" json:"region_workers"`
	WarmupIterations int              `mapstructure:"warmup_iterations" yaml:"warmup_iterations" json:"warmup_iterations"`
}

// DetectorConfig contains text detection settings.
type DetectorConfig struct {
	Backend       string  `mapstructure:"backend" yaml:"backend" json:"backend"`
	ModelPath     string  `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DbThresh      float32 `mapstructure:"db_thresh" yaml:"db_thresh" json:"db_thresh"`
	BoxThresh     float32 `mapstructure:"box_thresh" yaml:"box_thresh" json:"box_thresh"`
	UnclipRatio   float64 `mapstructure:"unclip_ratio" yaml:"unclip_ratio" json:"unclip_ratio"`
	MinBoxSize    int     `mapstructure:"min_box_size" yaml:"min_box_size" json:"min_box_size"`
	MaxImageSize  int     `mapstructure:"max_image_size" yaml:"max_image_size" json:"max_image_size"`
	NumThreads    int     `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	Language      string  `mapstructure:"language" yaml:"language" json:"language"`
	SidecarDir    string  `mapstructure:"sidecar_dir" yaml:"sidecar_dir" json:"sidecar_dir"`
	SidecarSuffix string  `mapstructure:"sidecar_suffix" yaml:"sidecar_suffix" json:"sidecar_suffix"`
}

// RecognizerConfig contains text recognition settings.
type RecognizerConfig struct {
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	HparamsPath string `mapstructure:"hparams_path" yaml:"hparams_path" json:"hparams_path"`
	MaxSteps    int    `mapstructure:"max_steps" yaml:"max_steps" json:"max_steps"`
	NumThreads  int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// OutputConfig controls the per-image artifacts.
type OutputConfig struct {
	Dir        string `mapstructure:"dir" yaml:"dir" json:"dir"`
	DumpDir    string `mapstructure:"dump_dir" yaml:"dump_dir" json:"dump_dir"`
	DumpBBoxes bool   `mapstructure:"dump_bboxes" yaml:"dump_bboxes" json:"dump_bboxes"`
	DumpOCR    bool   `mapstructure:"dump_ocr" yaml:"dump_ocr" json:"dump_ocr"`
	Overlay    bool   `mapstructure:"overlay" yaml:"overlay" json:"overlay"`
}

// BatchConfig contains batch processing settings.
type BatchConfig struct {
	Workers     int    `mapstructure:"workers" yaml:"workers" json:"workers"`
	Recursive   bool   `mapstructure:"recursive" yaml:"recursive" json:"recursive"`
	PDFPages    string `mapstructure:"pdf_pages" yaml:"pdf_pages" json:"pdf_pages"`
	PDFPassword string `mapstructure:"pdf_password" yaml:"-" json:"-"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host            string `mapstructure:"host" yaml:"host" json:"host"`
	Port            int    `mapstructure:"port" yaml:"port" json:"port"`
	CORSOrigin      string `mapstructure:"cors_origin" yaml:"cors_origin" json:"cors_origin"`
	MaxUploadMB     int    `mapstructure:"max_upload_mb" yaml:"max_upload_mb" json:"max_upload_mb"`
	TimeoutSec      int    `mapstructure:"timeout_sec" yaml:"timeout_sec" json:"timeout_sec"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// RequestsPerMinute limits OCR requests per client; 0 disables limiting.
	RequestsPerMinute int `mapstructure:"requests_per_minute" yaml:"requests_per_minute" json:"requests_per_minute"`
}

// GPUConfig contains GPU acceleration settings.
type GPUConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Device      int    `mapstructure:"device" yaml:"device" json:"device"`
	MemoryLimit string `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
}
