package utils

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDrawPolygon_ClosedOutline(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 20, 20))
	green := color.RGBA{G: 255, A: 255}
	DrawPolygon(dst, []image.Point{{X: 2, Y: 2}, {X: 15, Y: 2}, {X: 15, Y: 15}, {X: 2, Y: 15}}, green, 3)

	assert.Equal(t, green, dst.RGBAAt(8, 2))
	assert.Equal(t, green, dst.RGBAAt(8, 3))
	assert.Equal(t, green, dst.RGBAAt(2, 8))
	assert.Equal(t, color.RGBA{}, dst.RGBAAt(8, 8))
}

func TestDrawPolygon_ClipsOutsideAndIgnoresShort(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 5, 5))
	DrawPolygon(dst, []image.Point{{X: -10, Y: -10}, {X: 30, Y: 30}}, color.White, 1)
	assert.Equal(t, color.RGBA{R: 255, G: 255, B: 255, A: 255}, dst.RGBAAt(2, 2))

	fresh := image.NewRGBA(image.Rect(0, 0, 5, 5))
	DrawPolygon(fresh, []image.Point{{X: 1, Y: 1}}, color.White, 1)
	assert.Equal(t, color.RGBA{}, fresh.RGBAAt(1, 1))
}

func TestDrawLabel(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 40, 20))
	DrawLabel(dst, image.Pt(2, 14), "7", color.Black, color.RGBA{G: 255, A: 255})
	// Background box is filled.
	assert.Equal(t, uint8(255), dst.RGBAAt(2, 5).G)
}
