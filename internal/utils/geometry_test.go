package utils

import (
	"image"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestBoundingBox(t *testing.T) {
	pts := []Point{{X: 5, Y: 1}, {X: 2, Y: 7}, {X: 9, Y: 3}, {X: 4, Y: 0}}
	assert.Equal(t, Box{MinX: 2, MinY: 0, MaxX: 9, MaxY: 7}, BoundingBox(pts))
	assert.Equal(t, Box{}, BoundingBox(nil))
}

func TestNewBox_Orders(t *testing.T) {
	b := NewBox(10, 8, 2, 3)
	assert.Equal(t, Box{MinX: 2, MinY: 3, MaxX: 10, MaxY: 8}, b)
	assert.InDelta(t, 8.0, b.Width(), 1e-9)
	assert.InDelta(t, 5.0, b.Height(), 1e-9)
}

func TestTruncRect(t *testing.T) {
	r := Box{MinX: 1.9, MinY: 2.2, MaxX: 10.99, MaxY: 4.5}.TruncRect()
	assert.Equal(t, image.Rectangle{Min: image.Pt(1, 2), Max: image.Pt(10, 4)}, r)

	// Degenerate boxes are not canonicalized.
	r = Box{MinX: 3.7, MinY: 0, MaxX: 3.2, MaxY: 5}.TruncRect()
	assert.Equal(t, 3, r.Min.X)
	assert.Equal(t, 3, r.Max.X)
	assert.True(t, r.Empty())
}

func TestCentroid(t *testing.T) {
	x, y := Centroid([]Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 2}, {X: 0, Y: 2}})
	assert.InDelta(t, 2.0, x, 1e-9)
	assert.InDelta(t, 1.0, y, 1e-9)

	x, y = Centroid(nil)
	assert.Zero(t, x)
	assert.Zero(t, y)
}

func TestTruncPointsAndScale(t *testing.T) {
	assert.Equal(t, []image.Point{{X: 1, Y: 2}, {X: -1, Y: 0}},
		TruncPoints([]Point{{X: 1.8, Y: 2.1}, {X: -1.5, Y: 0.9}}))
	assert.Equal(t, []Point{{X: 2, Y: 6}}, ScalePoints([]Point{{X: 1, Y: 2}}, 2, 3))
}

func TestRectPolygon(t *testing.T) {
	poly := RectPolygon(image.Rect(1, 2, 5, 6))
	assert.Len(t, poly, 4)
	assert.Equal(t, Box{MinX: 1, MinY: 2, MaxX: 5, MaxY: 6}, BoundingBox(poly))
}

func TestBoundingBox_ContainsAllPoints(t *testing.T) {
	properties := gopter.NewProperties(nil)
	properties.Property("every vertex lies inside its bounding box", prop.ForAll(
		func(xs, ys []float64) bool {
			n := min(len(xs), len(ys))
			if n == 0 {
				return true
			}
			pts := make([]Point, n)
			for i := range n {
				pts[i] = Point{X: xs[i], Y: ys[i]}
			}
			b := BoundingBox(pts)
			for _, p := range pts {
				if p.X < b.MinX || p.X > b.MaxX || p.Y < b.MinY || p.Y > b.MaxY {
					return false
				}
			}
			return b.MinX <= b.MaxX && b.MinY <= b.MaxY
		},
		gen.SliceOf(gen.Float64Range(-1000, 1000)),
		gen.SliceOf(gen.Float64Range(-1000, 1000)),
	))
	properties.TestingRun(t)
}
