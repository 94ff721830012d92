package imaging

import (
	"image"
	"math"
	"math/rand/v2"
)

// Segment is a detected line segment in pixel coordinates.
type Segment struct {
	X1, Y1, X2, Y2 int
}

// Angle returns the segment direction in degrees, in (-180, 180].
func (s Segment) Angle() float64 {
	return math.Atan2(float64(s.Y2-s.Y1), float64(s.X2-s.X1)) * 180 / math.Pi
}

// HoughParams configures probabilistic Hough segment detection.
type HoughParams struct {
	Rho       float64 // distance resolution in pixels
	Theta     float64 // angle resolution in radians
	Threshold int     // minimum accumulator votes
	MinLength int     // minimum segment extent along either axis
	MaxGap    int     // maximum gap between points of one segment
}

const houghShift = 16

// HoughSegments runs the progressive probabilistic Hough transform over an
// edge map. Edge points are visited in a pseudo-random order seeded with a
// fixed value, so the output is deterministic for a given input.
func HoughSegments(edges []bool, w, h int, p HoughParams) []Segment {
	if w == 0 || h == 0 || p.Rho <= 0 || p.Theta <= 0 {
		return nil
	}
	numAngle := int(math.Round(math.Pi / p.Theta))
	numRho := int(math.Round(float64((w+h)*2+1) / p.Rho))
	irho := 1 / p.Rho
	cosT := make([]float64, numAngle)
	sinT := make([]float64, numAngle)
	for n := 0; n < numAngle; n++ {
		a := float64(n) * p.Theta
		cosT[n] = math.Cos(a) * irho
		sinT[n] = math.Sin(a) * irho
	}
	acc := make([]int32, numAngle*numRho)
	rhoIndex := func(n, x, y int) int {
		return int(math.Round(float64(x)*cosT[n]+float64(y)*sinT[n])) + (numRho-1)/2
	}

	mask := make([]bool, w*h)
	var pts []image.Point
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if edges[y*w+x] {
				mask[y*w+x] = true
				pts = append(pts, image.Pt(x, y))
			}
		}
	}

	rng := rand.New(rand.NewPCG(0x5eed, 0xd0c5))
	var lines []Segment
	for count := len(pts); count > 0; count-- {
		idx := rng.IntN(count)
		pt := pts[idx]
		pts[idx] = pts[count-1]
		if !mask[pt.Y*w+pt.X] {
			continue
		}

		maxVal, maxN := p.Threshold-1, 0
		for n := 0; n < numAngle; n++ {
			r := rhoIndex(n, pt.X, pt.Y)
			acc[n*numRho+r]++
			if v := int(acc[n*numRho+r]); v > maxVal {
				maxVal, maxN = v, n
			}
		}
		if maxVal < p.Threshold {
			continue
		}

		// walk along the line direction in fixed point
		a := -sinT[maxN]
		b := cosT[maxN]
		x0, y0 := int64(pt.X), int64(pt.Y)
		var dx0, dy0 int64
		xflag := math.Abs(a) > math.Abs(b)
		if xflag {
			dx0 = sign(a)
			dy0 = int64(math.Round(b * (1 << houghShift) / math.Abs(a)))
			y0 = (y0 << houghShift) + (1 << (houghShift - 1))
		} else {
			dy0 = sign(b)
			dx0 = int64(math.Round(a * (1 << houghShift) / math.Abs(b)))
			x0 = (x0 << houghShift) + (1 << (houghShift - 1))
		}
		coords := func(x, y int64) (int, int) {
			if xflag {
				return int(x), int(y >> houghShift)
			}
			return int(x >> houghShift), int(y)
		}

		var ends [2]image.Point
		for k := 0; k < 2; k++ {
			gap := 0
			dx, dy := dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for x, y := x0, y0; ; x, y = x+dx, y+dy {
				j, i := coords(x, y)
				if j < 0 || j >= w || i < 0 || i >= h {
					break
				}
				if mask[i*w+j] {
					gap = 0
					ends[k] = image.Pt(j, i)
				} else {
					gap++
					if gap > p.MaxGap {
						break
					}
				}
			}
		}

		good := abs(ends[1].X-ends[0].X) >= p.MinLength || abs(ends[1].Y-ends[0].Y) >= p.MinLength

		for k := 0; k < 2; k++ {
			dx, dy := dx0, dy0
			if k > 0 {
				dx, dy = -dx, -dy
			}
			for x, y := x0, y0; ; x, y = x+dx, y+dy {
				j, i := coords(x, y)
				if mask[i*w+j] {
					if good {
						for n := 0; n < numAngle; n++ {
							acc[n*numRho+rhoIndex(n, j, i)]--
						}
					}
					mask[i*w+j] = false
				}
				if i == ends[k].Y && j == ends[k].X {
					break
				}
			}
		}

		if good {
			lines = append(lines, Segment{X1: ends[0].X, Y1: ends[0].Y, X2: ends[1].X, Y2: ends[1].Y})
		}
	}
	return lines
}

func sign(v float64) int64 {
	if v > 0 {
		return 1
	}
	return -1
}
