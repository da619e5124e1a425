package detector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// regionJSON mirrors the (polygon, label, score) tuple of detector output.
type regionJSON struct {
	Polygon [][2]float64 `json:"polygon"`
	Label   string       `json:"label,omitempty"`
	Score   float64      `json:"score"`
}

type regionsFile struct {
	Image   string       `json:"image,omitempty"`
	Regions []regionJSON `json:"regions"`
}

// WriteRegions serializes regions in the sidecar format.
func WriteRegions(w io.Writer, image string, regions []Region) error {
	out := regionsFile{Image: image, Regions: make([]regionJSON, len(regions))}
	for i, r := range regions {
		rj := regionJSON{Label: r.Label, Score: r.Score, Polygon: make([][2]float64, len(r.Polygon))}
		for j, p := range r.Polygon {
			rj.Polygon[j] = [2]float64{p.X, p.Y}
		}
		out.Regions[i] = rj
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ReadRegions parses the sidecar format.
func ReadRegions(r io.Reader) ([]Region, error) {
	var in regionsFile
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("invalid regions file: %w", err)
	}
	out := make([]Region, len(in.Regions))
	for i, rj := range in.Regions {
		if len(rj.Polygon) == 0 {
			return nil, fmt.Errorf("region %d has no vertices", i)
		}
		poly := make([]utils.Point, len(rj.Polygon))
		for j, p := range rj.Polygon {
			poly[j] = utils.Point{X: p[0], Y: p[1]}
		}
		out[i] = Region{Polygon: poly, Label: rj.Label, Score: rj.Score}
	}
	return out, nil
}

// SidecarDetector reads precomputed regions from <stem><suffix> next to the
// image, or inside a dedicated directory.
type SidecarDetector struct {
	dir    string
	suffix string
}

// NewSidecarDetector returns a detector backed by region files.
func NewSidecarDetector(cfg Config) *SidecarDetector {
	suffix := cfg.SidecarSuffix
	if suffix == "" {
		suffix = DefaultConfig().SidecarSuffix
	}
	return &SidecarDetector{dir: cfg.SidecarDir, suffix: suffix}
}

// PathFor returns the region file consulted for an image.
func (s *SidecarDetector) PathFor(imagePath string) string {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	dir := s.dir
	if dir == "" {
		dir = filepath.Dir(imagePath)
	}
	return filepath.Join(dir, stem+s.suffix)
}

// Detect loads the regions for src.Path.
func (s *SidecarDetector) Detect(ctx context.Context, src Source) ([]Region, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if src.Path == "" {
		return nil, errors.New("sidecar detection needs an image path")
	}
	p := s.PathFor(src.Path)
	f, err := os.Open(p) //nolint:gosec // G304: path derived from the input image
	if err != nil {
		return nil, fmt.Errorf("open regions for %s: %w", filepath.Base(src.Path), err)
	}
	defer func() { _ = f.Close() }()
	return ReadRegions(f)
}

// Close is a no-op.
func (s *SidecarDetector) Close() error { return nil }
