package detector

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

func TestWriteReadRegionsRoundTrip(t *testing.T) {
	regions := []Region{
		{Polygon: []utils.Point{{X: 1.5, Y: 2}, {X: 10, Y: 2}, {X: 10, Y: 8}, {X: 1.5, Y: 8}}, Score: 0.93, Label: "Привет"},
		{Polygon: []utils.Point{{X: 50, Y: 10}, {X: 50, Y: 1}, {X: 5, Y: 1}}, Score: 1},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteRegions(&buf, "page.png", regions))
	assert.Contains(t, buf.String(), `"image": "page.png"`)

	got, err := ReadRegions(&buf)
	require.NoError(t, err)
	assert.Equal(t, regions, got)
}

func TestReadRegionsErrors(t *testing.T) {
	_, err := ReadRegions(strings.NewReader("not json"))
	require.Error(t, err)

	_, err = ReadRegions(strings.NewReader(`{"regions":[{"polygon":[],"score":1}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no vertices")
}

func TestSidecarDetector(t *testing.T) {
	dir := t.TempDir()
	imgPath := filepath.Join(dir, "scan.jpg")
	body := `{"regions":[{"polygon":[[0,0],[10,0],[10,5],[0,5]],"score":0.8}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scan.regions.json"), []byte(body), 0o600))

	d := NewSidecarDetector(Config{})
	assert.Equal(t, filepath.Join(dir, "scan.regions.json"), d.PathFor(imgPath))

	regions, err := d.Detect(context.Background(), Source{Path: imgPath})
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 0.8, regions[0].Score)
	assert.Equal(t, utils.Point{X: 10, Y: 5}, regions[0].Polygon[2])
	require.NoError(t, d.Close())
}

func TestSidecarDetectorDirectory(t *testing.T) {
	dir := t.TempDir()
	d := NewSidecarDetector(Config{SidecarDir: dir, SidecarSuffix: ".json"})
	assert.Equal(t, filepath.Join(dir, "a.json"), d.PathFor("/elsewhere/a.png"))

	_, err := d.Detect(context.Background(), Source{Path: "/elsewhere/a.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.png")

	_, err = d.Detect(context.Background(), Source{})
	require.Error(t, err)
}

func TestSidecarDetectorCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSidecarDetector(Config{}).Detect(ctx, Source{Path: "x.png"})
	require.ErrorIs(t, err, context.Canceled)
}
