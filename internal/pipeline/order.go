package pipeline

import (
	"cmp"
	"slices"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/detector"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// SortReadingOrder returns a copy of regions ordered top to bottom, then
// left to right, by the mean of their vertices. Ties keep detector order.
func SortReadingOrder(regions []detector.Region) []detector.Region {
	type keyed struct {
		r    detector.Region
		x, y float64
	}
	ks := make([]keyed, len(regions))
	for i, r := range regions {
		x, y := utils.Centroid(r.Polygon)
		ks[i] = keyed{r: r, x: x, y: y}
	}
	slices.SortStableFunc(ks, func(a, b keyed) int {
		if c := cmp.Compare(a.y, b.y); c != 0 {
			return c
		}
		return cmp.Compare(a.x, b.x)
	})
	out := make([]detector.Region, len(ks))
	for i, k := range ks {
		out[i] = k.r
	}
	return out
}
