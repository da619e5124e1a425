package pipeline

import (
	"image"
	"image/draw"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// Extraction is the outcome of cutting a region out of an image. When Empty
// is set, Crop is nil and the region must be skipped.
type Extraction struct {
	Crop *image.NRGBA
	// Bounds is the truncated bounding box before clipping to the image.
	Bounds image.Rectangle
	Empty  bool
}

// ExtractRegion crops the axis-aligned bounding box of polygon. Coordinates
// are truncated toward zero. Like an array slice, a box running past the
// right or bottom edge is clipped, while a negative minimum yields no pixels
// and the region is empty.
func ExtractRegion(img image.Image, polygon []utils.Point) Extraction {
	if img == nil || len(polygon) == 0 {
		return Extraction{Empty: true}
	}
	box := utils.BoundingBox(polygon).TruncRect()
	if box.Min.X >= box.Max.X || box.Min.Y >= box.Max.Y {
		return Extraction{Bounds: box, Empty: true}
	}
	if box.Min.X < 0 || box.Min.Y < 0 {
		return Extraction{Bounds: box, Empty: true}
	}

	// Offsets are relative to the image origin, like array indices.
	b := img.Bounds()
	r := box.Add(b.Min).Intersect(b)
	if r.Empty() {
		return Extraction{Bounds: box, Empty: true}
	}

	crop := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(crop, crop.Bounds(), img, r.Min, draw.Src)
	return Extraction{Crop: crop, Bounds: box}
}
