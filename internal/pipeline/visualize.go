package pipeline

import (
	"image"
	"image/color"
	"strconv"

	"github.com/disintegration/imaging"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// Overlay styling.
var (
	OverlayColor     = color.NRGBA{R: 0, G: 255, B: 0, A: 255}
	OverlayThickness = 3
	labelBackground  = color.NRGBA{A: 160}
)

// RenderOverlay returns a copy of img with every region outlined and
// numbered in the given order.
func RenderOverlay(img image.Image, regions []detector.Region) *image.NRGBA {
	if img == nil {
		return nil
	}
	dst := imaging.Clone(img)
	for i, r := range regions {
		pts := utils.TruncPoints(r.Polygon)
		if len(pts) == 0 {
			continue
		}
		utils.DrawPolygon(dst, pts, OverlayColor, OverlayThickness)
		top := pts[0]
		for _, p := range pts[1:] {
			if p.Y < top.Y || (p.Y == top.Y && p.X < top.X) {
				top = p
			}
		}
		utils.DrawLabel(dst, image.Pt(top.X, max(top.Y-OverlayThickness, 13)), strconv.Itoa(i), OverlayColor, labelBackground)
	}
	return dst
}
