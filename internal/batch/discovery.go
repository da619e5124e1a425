package batch

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/pdf"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// isSupportedInput reports whether path is an image or PDF we can read.
func isSupportedInput(path string) bool {
	return utils.IsSupportedImage(path) || pdf.IsPDF(path)
}

// discoverInputs expands directories into their supported files. Explicit
// files with an unsupported extension are skipped with a warning. Directory
// listings come back in lexical order.
func discoverInputs(args []string, recursive bool) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			found, err := discoverInDirectory(arg, recursive)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
			continue
		}
		if !isSupportedInput(arg) {
			slog.Warn("Skipping unsupported file", "file", arg)
			continue
		}
		files = append(files, arg)
	}
	return files, nil
}

func discoverInDirectory(dir string, recursive bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isSupportedInput(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return files, nil
}
