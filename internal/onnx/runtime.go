package onnx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/yalue/onnxruntime_go"
)

// LibraryEnvVar overrides the shared library lookup.
const LibraryEnvVar = "CYROCR_ONNXRUNTIME_LIB"

var envMu sync.Mutex

// libraryName returns the shared library filename for goos.
func libraryName(goos string) (string, error) {
	switch goos {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}
}

// candidateLibraryPaths lists locations to probe, GPU builds first when requested.
func candidateLibraryPaths(useGPU bool, projectRoot, libName string) []string {
	var paths []string
	if env := os.Getenv(LibraryEnvVar); env != "" {
		paths = append(paths, env)
	}
	if useGPU {
		paths = append(paths, filepath.Join("/opt/onnxruntime/gpu/lib", libName))
	}
	paths = append(paths,
		filepath.Join("/usr/local/lib", libName),
		filepath.Join("/usr/lib", libName),
		filepath.Join("/opt/onnxruntime/cpu/lib", libName),
	)
	if projectRoot != "" {
		if useGPU {
			paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "gpu", "lib", libName))
		}
		paths = append(paths, filepath.Join(projectRoot, "onnxruntime", "lib", libName))
	}
	return paths
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root")
		}
		dir = parent
	}
}

// SetONNXLibraryPath points onnxruntime_go at the first shared library found.
func SetONNXLibraryPath(useGPU bool) error {
	libName, err := libraryName(runtime.GOOS)
	if err != nil {
		return err
	}
	root, _ := findProjectRoot()
	for _, p := range candidateLibraryPaths(useGPU, root, libName) {
		if _, err := os.Stat(p); err == nil {
			onnxruntime_go.SetSharedLibraryPath(p)
			return nil
		}
	}
	return fmt.Errorf("ONNX Runtime library %s not found (set %s)", libName, LibraryEnvVar)
}

// EnsureEnvironment initializes the ONNX Runtime environment once per process.
func EnsureEnvironment(useGPU bool) error {
	envMu.Lock()
	defer envMu.Unlock()
	if onnxruntime_go.IsInitialized() {
		return nil
	}
	if err := SetONNXLibraryPath(useGPU); err != nil {
		return fmt.Errorf("failed to set ONNX Runtime library path: %w", err)
	}
	if err := onnxruntime_go.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	return nil
}

// SessionOptions are the knobs shared by every session this module opens.
type SessionOptions struct {
	NumThreads int
	GPU        GPUConfig
}

// NewSession opens a dynamic session bound to the given input and output names.
func NewSession(modelPath string, inputs, outputs []string, so SessionOptions) (*onnxruntime_go.DynamicAdvancedSession, error) {
	opts, err := onnxruntime_go.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = opts.Destroy() }()

	if err := ConfigureSessionForGPU(opts, so.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if so.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(so.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	session, err := onnxruntime_go.NewDynamicAdvancedSession(modelPath, inputs, outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return session, nil
}

// ModelIO returns the declared inputs and outputs of a model file.
func ModelIO(modelPath string) ([]onnxruntime_go.InputOutputInfo, []onnxruntime_go.InputOutputInfo, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	in, out, err := onnxruntime_go.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get model input/output info: %w", err)
	}
	return in, out, nil
}
