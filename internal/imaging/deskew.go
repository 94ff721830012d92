package imaging

import (
	"image"
	"math"
	"sort"
)

const (
	cannyLow  = 50
	cannyHigh = 150

	// MinSkewDegrees is the smallest measured skew that triggers a rotation.
	MinSkewDegrees = 0.5
)

var deskewHough = HoughParams{
	Rho:       1,
	Theta:     math.Pi / 180,
	Threshold: 100,
	MinLength: 100,
	MaxGap:    10,
}

// EstimateSkew measures the dominant line angle of g in degrees, folded into
// [-45, 45]. It returns the median angle and the number of segments used;
// zero segments means no measurement.
func EstimateSkew(g *image.Gray) (float64, int) {
	g = normalize(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	edges := Canny(g, cannyLow, cannyHigh)
	segs := HoughSegments(edges, w, h, deskewHough)
	if len(segs) == 0 {
		return 0, 0
	}
	angles := make([]float64, len(segs))
	for i, s := range segs {
		angles[i] = foldAngle(s.Angle())
	}
	return median(angles), len(angles)
}

// Deskew rotates g to undo the measured skew. When the skew magnitude is at
// most MinSkewDegrees, g is returned unchanged.
func Deskew(g *image.Gray) (*image.Gray, float64) {
	angle, n := EstimateSkew(g)
	if n == 0 || math.Abs(angle) <= MinSkewDegrees {
		return g, angle
	}
	return Rotate(g, angle), angle
}

// Rotate rotates g by degrees about its center, counter-clockwise as seen on
// screen for positive values, keeping the original size. Pixels sampled
// outside the source replicate the nearest edge; sampling is bicubic.
func Rotate(g *image.Gray, degrees float64) *image.Gray {
	g = normalize(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	rad := degrees * math.Pi / 180
	alpha, beta := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(w/2), float64(h/2)

	for y := 0; y < h; y++ {
		dy := float64(y) - cy
		for x := 0; x < w; x++ {
			dx := float64(x) - cx
			sx := alpha*dx - beta*dy + cx
			sy := beta*dx + alpha*dy + cy
			out.Pix[y*w+x] = sampleBicubic(g, sx, sy)
		}
	}
	return out
}

func sampleBicubic(g *image.Gray, sx, sy float64) uint8 {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	x0, y0 := math.Floor(sx), math.Floor(sy)
	wx := cubicWeights(sx - x0)
	wy := cubicWeights(sy - y0)
	ix, iy := int(x0), int(y0)

	var acc float64
	for j := 0; j < 4; j++ {
		row := clampInt(iy-1+j, 0, h-1) * w
		var racc float64
		for i := 0; i < 4; i++ {
			racc += wx[i] * float64(g.Pix[row+clampInt(ix-1+i, 0, w-1)])
		}
		acc += wy[j] * racc
	}
	return clampByte(acc)
}

// cubicWeights returns the 4 tap weights of the a=-0.75 cubic convolution
// kernel for fractional offset t.
func cubicWeights(t float64) [4]float64 {
	const a = -0.75
	x := t + 1
	w0 := ((a*x-5*a)*x+8*a)*x - 4*a
	w1 := ((a+2)*t-(a+3))*t*t + 1
	u := 1 - t
	w2 := ((a+2)*u-(a+3))*u*u + 1
	return [4]float64{w0, w1, w2, 1 - w0 - w1 - w2}
}

func foldAngle(a float64) float64 {
	for a > 45 {
		a -= 90
	}
	for a < -45 {
		a += 90
	}
	return a
}

func median(vals []float64) float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}
