package utils

import (
	"image"

	"gonum.org/v1/gonum/stat"
)

// Point is a 2D coordinate in image space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned bounding box in float coordinates.
type Box struct {
	MinX float64
	MinY float64
	MaxX float64
	MaxY float64
}

// NewBox constructs a Box from two corners in any order.
func NewBox(x1, y1, x2, y2 float64) Box {
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	if y1 > y2 {
		y1, y2 = y2, y1
	}
	return Box{MinX: x1, MinY: y1, MaxX: x2, MaxY: y2}
}

func (b Box) Width() float64  { return b.MaxX - b.MinX }
func (b Box) Height() float64 { return b.MaxY - b.MinY }

// TruncRect converts the box to pixel bounds, truncating every coordinate
// toward zero. The result is neither clamped nor canonicalized.
func (b Box) TruncRect() image.Rectangle {
	return image.Rectangle{
		Min: image.Point{X: int(b.MinX), Y: int(b.MinY)},
		Max: image.Point{X: int(b.MaxX), Y: int(b.MaxY)},
	}
}

// BoundingBox returns the axis-aligned bounding box of pts.
func BoundingBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = min(b.MinX, p.X)
		b.MinY = min(b.MinY, p.Y)
		b.MaxX = max(b.MaxX, p.X)
		b.MaxY = max(b.MaxY, p.Y)
	}
	return b
}

// Centroid returns the mean x and mean y of the vertices.
func Centroid(pts []Point) (float64, float64) {
	if len(pts) == 0 {
		return 0, 0
	}
	xs := make([]float64, len(pts))
	ys := make([]float64, len(pts))
	for i, p := range pts {
		xs[i], ys[i] = p.X, p.Y
	}
	return stat.Mean(xs, nil), stat.Mean(ys, nil)
}

// TruncPoints converts vertices to integer pixels by truncation.
func TruncPoints(pts []Point) []image.Point {
	out := make([]image.Point, len(pts))
	for i, p := range pts {
		out[i] = image.Point{X: int(p.X), Y: int(p.Y)}
	}
	return out
}

// ScalePoints returns a copy of pts scaled by sx, sy.
func ScalePoints(pts []Point, sx, sy float64) []Point {
	out := make([]Point, len(pts))
	for i, p := range pts {
		out[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	return out
}

// RectPolygon returns the four corners of r clockwise from the top-left.
func RectPolygon(r image.Rectangle) []Point {
	return []Point{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}
