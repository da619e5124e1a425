package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Model artifact filenames.
const (
	// RecognitionTransformer is the ResNet50 + Transformer recognizer exported to ONNX.
	RecognitionTransformer = "ocr_transformer_rn50_64x256_53str.onnx"
	// RecognitionHparams holds the alphabet and architecture hyperparameters.
	RecognitionHparams = "config.json"
	// DetectionDB is a differentiable-binarization text detector.
	DetectionDB = "db_text_det.onnx"
)

// Artifact categories, one subdirectory each.
const (
	TypeDetection   = "detection"
	TypeRecognition = "recognition"
)

// DefaultModelsDir is resolved against the project root when no override is set.
const DefaultModelsDir = "models"

// EnvModelsDir overrides the models directory.
const EnvModelsDir = "CYROCR_MODELS_DIR"

// Info describes a known artifact.
type Info struct {
	Name        string
	Type        string
	Description string
	Filename    string
}

func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("could not find project root (go.mod not found)")
		}
		dir = parent
	}
}

// GetModelsDir resolves the models directory.
// Priority: explicit argument, environment variable, project root + default.
func GetModelsDir(modelsDir string) string {
	if modelsDir != "" {
		return modelsDir
	}
	if env := os.Getenv(EnvModelsDir); env != "" {
		return env
	}
	if root, err := findProjectRoot(); err == nil {
		return filepath.Join(root, DefaultModelsDir)
	}
	return DefaultModelsDir
}

// ResolveModelPath prefers <dir>/<type>/<file> and falls back to the flat <dir>/<file>.
func ResolveModelPath(modelsDir, modelType, filename string) string {
	base := GetModelsDir(modelsDir)
	if modelType != "" {
		organized := filepath.Join(base, modelType, filename)
		if _, err := os.Stat(organized); err == nil {
			return organized
		}
	}
	return filepath.Join(base, filename)
}

// GetRecognitionModelPath returns the recognizer weights path.
func GetRecognitionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeRecognition, RecognitionTransformer)
}

// GetHparamsPath returns the recognizer hyperparameter file path.
func GetHparamsPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeRecognition, RecognitionHparams)
}

// GetDetectionModelPath returns the DB detector path.
func GetDetectionModelPath(modelsDir string) string {
	return ResolveModelPath(modelsDir, TypeDetection, DetectionDB)
}

// ValidateModelExists checks that a model file is present.
func ValidateModelExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("model file not found: %s", path)
	}
	return nil
}

// ListAvailableModels returns the artifacts this module knows how to load.
func ListAvailableModels() []Info {
	return []Info{
		{
			Name:        "transformer-recognition",
			Type:        TypeRecognition,
			Description: "ResNet50 + Transformer Cyrillic recognizer (64x256 input)",
			Filename:    RecognitionTransformer,
		},
		{
			Name:        "recognition-hparams",
			Type:        TypeRecognition,
			Description: "Alphabet and hyperparameters for the recognizer",
			Filename:    RecognitionHparams,
		},
		{
			Name:        "db-detection",
			Type:        TypeDetection,
			Description: "DB text detector",
			Filename:    DetectionDB,
		},
	}
}
