// Package fingerprint computes and compares scale-invariant layout signatures.
package fingerprint

import (
	"image"
	"sort"

	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/imaging"
)

// Region is a detected content region in pixel coordinates.
type Region struct {
	Bounds image.Rectangle
	Area   int
}

// Engine computes fingerprints with a fixed set of zone rules.
type Engine struct {
	rules      ZoneRules
	noiseFloor float64
}

// NewEngine creates an Engine from configuration.
func NewEngine(cfg config.FingerprintConfig) *Engine {
	return &Engine{rules: RulesFromConfig(cfg), noiseFloor: cfg.NoiseFloor}
}

// DefaultEngine creates an Engine with the standard rules and noise floor.
func DefaultEngine() *Engine {
	return &Engine{rules: DefaultZoneRules(), noiseFloor: DefaultNoiseFloor}
}

// Rules returns the engine's classification rules.
func (e *Engine) Rules() ZoneRules {
	return e.rules
}

// Compute returns the fingerprint of img. A page without content regions
// yields an empty fingerprint.
func (e *Engine) Compute(img image.Image) domain.Fingerprint {
	g := toGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	fp := domain.Fingerprint{ImageWidth: w, ImageHeight: h, Zones: []domain.Zone{}}
	if w == 0 || h == 0 {
		return fp
	}

	pageArea := float64(w * h)
	var total float64
	for _, r := range e.Regions(g) {
		area := float64(r.Area) / pageArea
		if area < e.noiseFloor {
			continue
		}
		z := domain.Zone{
			XRatio:      float64(r.Bounds.Min.X) / float64(w),
			YRatio:      float64(r.Bounds.Min.Y) / float64(h),
			WidthRatio:  float64(r.Bounds.Dx()) / float64(w),
			HeightRatio: float64(r.Bounds.Dy()) / float64(h),
			AreaRatio:   area,
		}
		z.Type = e.rules.Classify(z.YRatio, z.WidthRatio, z.HeightRatio, z.AreaRatio)
		fp.Zones = append(fp.Zones, z)
		total += area
	}

	sort.SliceStable(fp.Zones, func(i, j int) bool {
		return fp.Zones[i].YRatio < fp.Zones[j].YRatio
	})
	fp.ZoneCount = len(fp.Zones)
	fp.TotalContentAreaRatio = min(total, 1)
	return fp
}

// Regions returns the outer content regions of img: dark pixels (at or below
// the Otsu threshold) grouped 8-connected, with enclosed holes counted as part
// of the region that surrounds them. Regions are ordered by first pixel in
// raster order.
func (e *Engine) Regions(img image.Image) []Region {
	g := toGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 {
		return nil
	}
	t := imaging.OtsuThreshold(g)
	filled := fillHoles(g, t)

	seen := make([]bool, w*h)
	var regions []Region
	var stack []int
	for start := range filled {
		if !filled[start] || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		minX, minY := start%w, start/w
		maxX, maxY := minX, minY
		count := 0
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			count++
			x, y := i%w, i/w
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= w {
						continue
					}
					j := ny*w + nx
					if filled[j] && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		regions = append(regions, Region{
			Bounds: image.Rect(minX, minY, maxX+1, maxY+1),
			Area:   count,
		})
	}
	return regions
}

// fillHoles marks ink pixels (<= t) plus every background pixel that cannot
// reach the page border through 4-connected background.
func fillHoles(g *image.Gray, t uint8) []bool {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := w * h
	ink := make([]bool, n)
	for i, p := range g.Pix[:n] {
		ink[i] = p <= t
	}

	outside := make([]bool, n)
	var stack []int
	push := func(i int) {
		if !ink[i] && !outside[i] {
			outside[i] = true
			stack = append(stack, i)
		}
	}
	for x := 0; x < w; x++ {
		push(x)
		push((h-1)*w + x)
	}
	for y := 0; y < h; y++ {
		push(y * w)
		push(y*w + w - 1)
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		if x > 0 {
			push(i - 1)
		}
		if x < w-1 {
			push(i + 1)
		}
		if y > 0 {
			push(i - w)
		}
		if y < h-1 {
			push(i + w)
		}
	}

	filled := make([]bool, n)
	for i := range filled {
		filled[i] = ink[i] || !outside[i]
	}
	return filled
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	return imaging.ToGray(img)
}
