// Package pdf pulls the embedded raster images out of PDF documents so they
// can be transcribed like ordinary image files.
package pdf

import (
	"cmp"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// Options narrows extraction.
type Options struct {
	// Pages is a range such as "1-3,7"; empty means every page.
	Pages    string
	Password string
}

// PageImage is one embedded image.
type PageImage struct {
	Page  int
	Index int
	Image image.Image
}

// Name returns a stem that identifies the image within its document.
func (p PageImage) Name(docStem string) string {
	return fmt.Sprintf("%s_p%d_%d", docStem, p.Page, p.Index)
}

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// PageCount returns the number of pages in filename.
func PageCount(filename string, password string) (int, error) {
	f, err := os.Open(filename) //nolint:gosec // G304: user-provided PDF path
	if err != nil {
		return 0, err
	}
	defer func() { _ = f.Close() }()
	n, err := api.PageCount(f, configuration(password))
	if err != nil {
		return 0, fmt.Errorf("read page count: %w", err)
	}
	return n, nil
}

func configuration(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	if password != "" {
		conf.UserPW = password
		conf.OwnerPW = password
	}
	return conf
}

// ExtractImages writes the embedded images of filename to a temporary
// directory with pdfcpu and decodes them, ordered by page then position.
func ExtractImages(filename string, opts Options) ([]PageImage, error) {
	pageNumbers, err := parsePageRange(opts.Pages)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", opts.Pages, err)
	}

	tempDir, err := os.MkdirTemp("", "cyrocr-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}
	if err := api.ExtractImagesFile(filename, tempDir, selected, configuration(opts.Password)); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return collectExtractedImages(tempDir, stem)
}

// collectExtractedImages decodes every page image found in dir.
func collectExtractedImages(dir, stem string) ([]PageImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	type found struct {
		page int
		name string
	}
	var files []found
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		page, err := parsePageFromFilename(e.Name(), stem)
		if err != nil {
			continue
		}
		files = append(files, found{page: page, name: e.Name()})
	}
	slices.SortFunc(files, func(a, b found) int {
		if c := cmp.Compare(a.page, b.page); c != 0 {
			return c
		}
		return strings.Compare(a.name, b.name)
	})

	var out []PageImage
	idx := map[int]int{}
	for _, f := range files {
		img, _, err := utils.LoadImage(filepath.Join(dir, f.name))
		if err != nil {
			// pdfcpu also emits formats we cannot decode (e.g. JPX)
			continue
		}
		out = append(out, PageImage{Page: f.page, Index: idx[f.page], Image: img})
		idx[f.page]++
	}
	return out, nil
}

// parsePageFromFilename reads the page number from pdfcpu output names,
// which look like <stem>_<page>_<id>.<ext> or page_<page>_image_<n>.<ext>.
func parsePageFromFilename(filename, stem string) (int, error) {
	name := strings.TrimSuffix(filename, filepath.Ext(filename))
	switch {
	case stem != "" && strings.HasPrefix(name, stem+"_"):
		name = strings.TrimPrefix(name, stem+"_")
	case strings.HasPrefix(name, "page_"):
		name = strings.TrimPrefix(name, "page_")
	default:
		return 0, errors.New("not a page file")
	}
	tok, _, _ := strings.Cut(name, "_")
	page, err := strconv.Atoi(tok)
	if err != nil || page < 0 {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}

// parsePageRange parses a page range string like "1-5" or "1,3,5".
func parsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}
	var pages []int
	for part := range strings.SplitSeq(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	if lo, hi, ok := strings.Cut(part, "-"); ok {
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid start page: %s", lo)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil {
			return nil, fmt.Errorf("invalid end page: %s", hi)
		}
		if start < 1 || start > end {
			return nil, fmt.Errorf("invalid range %d-%d", start, end)
		}
		out := make([]int, 0, end-start+1)
		for i := start; i <= end; i++ {
			out = append(out, i)
		}
		return out, nil
	}
	page, err := strconv.Atoi(part)
	if err != nil || page < 1 {
		return nil, fmt.Errorf("invalid page number: %s", part)
	}
	return []int{page}, nil
}
