package onnx

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/yalue/onnxruntime_go"
)

// GPUConfig controls CUDA acceleration for a session.
type GPUConfig struct {
	UseGPU                bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	DeviceID              int    `mapstructure:"device" yaml:"device" json:"device"`
	GPUMemLimit           uint64 `mapstructure:"memory_limit" yaml:"memory_limit" json:"memory_limit"`
	ArenaExtendStrategy   string `mapstructure:"arena_extend_strategy" yaml:"arena_extend_strategy" json:"arena_extend_strategy"`
	CUDNNConvAlgoSearch   string `mapstructure:"cudnn_conv_algo_search" yaml:"cudnn_conv_algo_search" json:"cudnn_conv_algo_search"`
	DoCopyInDefaultStream bool   `mapstructure:"copy_in_default_stream" yaml:"copy_in_default_stream" json:"copy_in_default_stream"`
}

// DefaultGPUConfig returns a CPU-only configuration with sane CUDA defaults.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{
		ArenaExtendStrategy:   "kNextPowerOfTwo",
		CUDNNConvAlgoSearch:   "DEFAULT",
		DoCopyInDefaultStream: true,
	}
}

// Validate checks the GPU settings. CPU-only configs are always valid.
func (c GPUConfig) Validate() error {
	if !c.UseGPU {
		return nil
	}
	if c.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", c.DeviceID)
	}
	switch c.ArenaExtendStrategy {
	case "", "kNextPowerOfTwo", "kSameAsRequested":
	default:
		return fmt.Errorf("invalid arena extend strategy: %s", c.ArenaExtendStrategy)
	}
	switch c.CUDNNConvAlgoSearch {
	case "", "EXHAUSTIVE", "HEURISTIC", "DEFAULT":
	default:
		return fmt.Errorf("invalid CUDNN conv algo search: %s", c.CUDNNConvAlgoSearch)
	}
	return nil
}

// cudaSettings renders the provider option map for the CUDA execution provider.
func (c GPUConfig) cudaSettings() map[string]string {
	settings := map[string]string{
		"device_id":                 strconv.Itoa(c.DeviceID),
		"do_copy_in_default_stream": "0",
	}
	if c.DoCopyInDefaultStream {
		settings["do_copy_in_default_stream"] = "1"
	}
	if c.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(c.GPUMemLimit, 10)
	}
	if c.ArenaExtendStrategy != "" {
		settings["arena_extend_strategy"] = c.ArenaExtendStrategy
	}
	if c.CUDNNConvAlgoSearch != "" {
		settings["cudnn_conv_algo_search"] = c.CUDNNConvAlgoSearch
	}
	return settings
}

// ConfigureSessionForGPU appends the CUDA provider when GPU use is requested.
func ConfigureSessionForGPU(opts *onnxruntime_go.SessionOptions, cfg GPUConfig) error {
	if !cfg.UseGPU {
		return nil
	}
	cudaOpts, err := onnxruntime_go.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options (GPU may not be available): %w", err)
	}
	defer func() {
		if err := cudaOpts.Destroy(); err != nil {
			slog.Warn("failed to destroy CUDA provider options", "error", err)
		}
	}()

	if err := cudaOpts.Update(cfg.cudaSettings()); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}
