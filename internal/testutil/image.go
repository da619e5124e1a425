package testutil

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Word is a string drawn at a known position of a Scene.
type Word struct {
	Text string
	// Rect is the tight box around the rendered glyphs.
	Rect image.Rectangle
}

// Scene is a synthetic page with the boxes of every word on it.
type Scene struct {
	Image *image.NRGBA
	Words []Word
}

// SceneConfig controls GenerateScene.
type SceneConfig struct {
	Width, Height int
	Background    color.Color
	Foreground    color.Color
	// Lines holds the words of each line, drawn top to bottom.
	Lines [][]string
	// Margin is the left and top offset of the first word.
	Margin int
	// Gap is the horizontal space between words and vertical space between lines.
	Gap int
}

// DefaultSceneConfig returns a two-line black on white page.
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Width:      320,
		Height:     120,
		Background: color.White,
		Foreground: color.Black,
		Lines:      [][]string{{"Privet", "mir"}, {"OCR"}},
		Margin:     10,
		Gap:        12,
	}
}

// GenerateScene renders the configured lines with basicfont and records a
// box per word. Only ASCII glyphs have shapes in basicfont; other runes are
// drawn as replacement boxes but still get correct bounds.
func GenerateScene(cfg SceneConfig) Scene {
	img := imaging.New(cfg.Width, cfg.Height, cfg.Background)
	face := basicfont.Face7x13
	drawer := &font.Drawer{Dst: img, Src: image.NewUniform(cfg.Foreground), Face: face}

	m := face.Metrics()
	ascent, lineH := m.Ascent.Ceil(), m.Height.Ceil()
	var words []Word
	y := cfg.Margin
	for _, line := range cfg.Lines {
		x := cfg.Margin
		for _, w := range line {
			drawer.Dot = fixed.P(x, y+ascent)
			drawer.DrawString(w)
			adv := font.MeasureString(face, w).Ceil()
			words = append(words, Word{Text: w, Rect: image.Rect(x, y, x+adv, y+lineH)})
			x += adv + cfg.Gap
		}
		y += lineH + cfg.Gap
	}
	return Scene{Image: img, Words: words}
}

// SolidImage returns a w×h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

// WritePNG saves img as dir/name and returns the path.
func WritePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save %s", path)
	return path
}

// WriteImages writes one small white PNG per name into dir and returns the
// paths in the same order.
func WriteImages(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, n := range names {
		paths[i] = WritePNG(t, dir, n, SolidImage(64, 32, color.White))
	}
	return paths
}

// LoadImage decodes path and fails the test on error.
func LoadImage(t *testing.T, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}
