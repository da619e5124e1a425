package detector

import (
	"math"

	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/mempool"
	"github.com/vergotten/CyrillicOCR-ResNet-Transformer/internal/utils"
)

// component accumulates statistics for one 4-connected blob.
type component struct {
	count                  int
	sum                    float64
	minX, minY, maxX, maxY int
}

func (c *component) add(x, y int, p float32) {
	c.count++
	c.sum += float64(p)
	c.minX = min(c.minX, x)
	c.minY = min(c.minY, y)
	c.maxX = max(c.maxX, x)
	c.maxY = max(c.maxY, y)
}

func (c component) mean() float64 {
	if c.count == 0 {
		return 0
	}
	return c.sum / float64(c.count)
}

// connectedComponents thresholds prob at t and labels 4-connected foreground.
func connectedComponents(prob []float32, w, h int, t float32) []component {
	mask := mempool.GetBool(w * h)
	defer mempool.PutBool(mask)
	for i, p := range prob {
		mask[i] = p >= t
	}

	var comps []component
	queue := make([]int, 0, 256)
	for start := range mask {
		if !mask[start] {
			continue
		}
		mask[start] = false
		sx, sy := start%w, start/w
		c := component{minX: sx, minY: sy, maxX: sx, maxY: sy}
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			i := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x, y := i%w, i/w
			c.add(x, y, prob[i])
			for _, n := range [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}} {
				nx, ny := n[0], n[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				if ni := ny*w + nx; mask[ni] {
					mask[ni] = false
					queue = append(queue, ni)
				}
			}
		}
		comps = append(comps, c)
	}
	return comps
}

// postProcess turns a probability map into regions in map coordinates.
// Each component's box is grown by the DB unclip distance
// area*(ratio)/perimeter and clamped to the map.
func postProcess(prob []float32, w, h int, cfg Config) []Region {
	if w <= 0 || h <= 0 || len(prob) != w*h {
		return nil
	}
	var regions []Region
	for _, c := range connectedComponents(prob, w, h, cfg.DbThresh) {
		score := c.mean()
		if score < float64(cfg.BoxThresh) {
			continue
		}
		bw := float64(c.maxX - c.minX + 1)
		bh := float64(c.maxY - c.minY + 1)
		if math.Min(bw, bh) < float64(cfg.MinBoxSize) {
			continue
		}
		d := bw * bh * cfg.UnclipRatio / (2 * (bw + bh))
		box := utils.Box{
			MinX: math.Max(0, float64(c.minX)-d),
			MinY: math.Max(0, float64(c.minY)-d),
			MaxX: math.Min(float64(w), float64(c.maxX+1)+d),
			MaxY: math.Min(float64(h), float64(c.maxY+1)+d),
		}
		regions = append(regions, Region{
			Polygon: []utils.Point{
				{X: box.MinX, Y: box.MinY}, {X: box.MaxX, Y: box.MinY},
				{X: box.MaxX, Y: box.MaxY}, {X: box.MinX, Y: box.MaxY},
			},
			Score: score,
		})
	}
	return regions
}

// scaleRegions maps regions from a mapW×mapH map onto the original image.
func scaleRegions(regions []Region, mapW, mapH, origW, origH int) []Region {
	if mapW == 0 || mapH == 0 {
		return regions
	}
	sx := float64(origW) / float64(mapW)
	sy := float64(origH) / float64(mapH)
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = Region{Polygon: utils.ScalePoints(r.Polygon, sx, sy), Label: r.Label, Score: r.Score}
	}
	return out
}
