package cmd

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/config"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/models"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pipeline"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/version"
)

// Processor is a built OCR pipeline. *pipeline.Pipeline implements it.
type Processor interface {
	ProcessImage(ctx context.Context, path string, img image.Image) (*pipeline.ImageResult, error)
	io.Closer
}

// ProcessorFactory builds the pipeline once the configuration is loaded.
// obs may be nil. An error here is a startup error and aborts the command.
type ProcessorFactory func(cfg *config.Config, obs pipeline.Observer) (Processor, error)

// BuildPipeline loads the detector and recognizer models named by cfg.
func BuildPipeline(cfg *config.Config, obs pipeline.Observer) (Processor, error) {
	b := pipeline.NewBuilderFromConfig(cfg.ToPipelineConfig())
	if obs != nil {
		b = b.WithObserver(obs)
	}
	p, err := b.Build()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// app is the state shared by one command tree.
type app struct {
	loader       *config.Loader
	cfg          *config.Config
	cfgFile      string
	newProcessor ProcessorFactory
}

// flagBinding maps a command-line flag to a configuration key.
type flagBinding struct {
	key  string
	flag string
}

// flagBindings covers every flag that has a config key. Commands bind the
// subset they define.
var flagBindings = []flagBinding{
	{"verbose", "verbose"},
	{"log_level", "log-level"},
	{"models_dir", "models-dir"},

	{"pipeline.recognizer.hparams_path", "hparams"},
	{"pipeline.recognizer.model_path", "weights"},
	{"pipeline.recognizer.max_steps", "max-steps"},
	{"pipeline.detector.backend", "detector"},
	{"pipeline.detector.model_path", "det-model"},
	{"pipeline.detector.box_thresh", "box-thresh"},
	{"pipeline.detector.sidecar_dir", "sidecar-dir"},
	{"pipeline.region_workers", "region-workers"},
	{"pipeline.warmup_iterations", "warmup"},

	{"output.dir", "output-dir"},
	{"output.dump_dir", "dump-dir"},
	{"output.dump_bboxes", "dump-bboxes"},
	{"output.dump_ocr", "dump-ocr"},
	{"output.overlay", "overlay"},

	{"batch.workers", "workers"},
	{"batch.recursive", "recursive"},
	{"batch.pdf_pages", "pdf-pages"},
	{"batch.pdf_password", "pdf-password"},

	{"server.host", "host"},
	{"server.port", "port"},
	{"server.cors_origin", "cors-origin"},
	{"server.max_upload_mb", "max-upload-mb"},
	{"server.timeout_sec", "timeout"},
	{"server.shutdown_timeout", "shutdown-timeout"},
	{"server.requests_per_minute", "rate-limit"},

	{"gpu.enabled", "gpu"},
	{"gpu.device", "gpu-device"},
	{"gpu.memory_limit", "gpu-mem-limit"},
}

// bindFlags binds the flags defined on cmd (local and inherited) to v.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for _, b := range flagBindings {
		f := flags.Lookup(b.flag)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", b.flag, err)
		}
	}
	return nil
}

// Execute runs the cyrocr command tree with the real pipeline.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCommand returns a fresh command tree backed by BuildPipeline.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithFactory(BuildPipeline)
}

// NewRootCommandWithFactory returns a fresh command tree that builds its
// pipeline with f. Every tree owns its own viper instance.
func NewRootCommandWithFactory(f ProcessorFactory) *cobra.Command {
	a := &app{
		loader:       config.NewLoaderWithViper(viper.New()),
		newProcessor: f,
	}

	root := &cobra.Command{
		Use:   "cyrocr",
		Short: "Cyrillic OCR: text detection and per-region transcription",
		Long: `cyrocr finds text regions in document images and transcribes each region
with a ResNet + Transformer sequence model exported to ONNX.

Examples:
  cyrocr image scan.png
  cyrocr batch demo/input --dump-ocr
  cyrocr serve --port 8080
  cyrocr bench scan.png --region-workers-list 1,4`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				printVersion(cmd.OutOrStdout())
				return nil
			}
			return cmd.Help()
		},
		PersistentPreRunE: a.initConfig,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default: cyrocr.yaml in ., $XDG_CONFIG_HOME/cyrocr, /etc/cyrocr)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("models-dir", models.DefaultModelsDir,
		"directory containing models (also "+models.EnvModelsDir+")")
	root.Flags().Bool("version", false, "print version information and exit")

	root.AddCommand(
		newImageCommand(a),
		newBatchCommand(a),
		newServeCommand(a),
		newBenchCommand(a),
		newConfigCommand(a),
	)
	return root
}

// initConfig binds the running command's flags, loads the configuration and
// installs the logger.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if err := bindFlags(a.loader.GetViper(), cmd.Flags()); err != nil {
		return err
	}
	cfg, err := a.loader.LoadWithFile(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.cfg = cfg
	setupLogging(cmd.ErrOrStderr(), cfg)
	if used := a.loader.GetConfigFileUsed(); used != "" {
		slog.Debug("Using config file", "file", used)
	}
	return nil
}

func setupLogging(w io.Writer, cfg *config.Config) {
	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "cyrocr version %s\n", version.String())
}
