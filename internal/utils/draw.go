package utils

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DrawPolygon draws a closed outline through pts.
func DrawPolygon(dst draw.Image, pts []image.Point, col color.Color, thickness int) {
	if len(pts) < 2 {
		return
	}
	for i := range pts {
		drawLine(dst, pts[i], pts[(i+1)%len(pts)], col, thickness)
	}
}

// DrawLabel writes ASCII text with its baseline-left corner at pt on a filled
// background so it stays legible over the page.
func DrawLabel(dst draw.Image, pt image.Point, text string, fg, bg color.Color) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: face}
	width := d.MeasureString(text).Ceil()
	box := image.Rect(pt.X, pt.Y-face.Ascent, pt.X+width+2, pt.Y+face.Descent)
	draw.Draw(dst, box.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)
	d.Dot = fixed.P(pt.X+1, pt.Y)
	d.DrawString(text)
}

// drawLine rasterizes a segment with Bresenham's algorithm.
func drawLine(dst draw.Image, a, b image.Point, col color.Color, thickness int) {
	x0, y0 := a.X, a.Y
	dx := int(math.Abs(float64(b.X - x0)))
	dy := -int(math.Abs(float64(b.Y - y0)))
	sx, sy := 1, 1
	if x0 > b.X {
		sx = -1
	}
	if y0 > b.Y {
		sy = -1
	}
	e := dx + dy
	for {
		drawThickPoint(dst, x0, y0, col, thickness)
		if x0 == b.X && y0 == b.Y {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func drawThickPoint(dst draw.Image, x, y int, col color.Color, thickness int) {
	r := (max(thickness, 1) - 1) / 2
	bounds := dst.Bounds()
	for yy := y - r; yy <= y+r; yy++ {
		for xx := x - r; xx <= x+r; xx++ {
			if image.Pt(xx, yy).In(bounds) {
				dst.Set(xx, yy, col)
			}
		}
	}
}
