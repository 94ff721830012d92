package imaging

import (
	"image"

	raster "github.com/disintegration/imaging"
)

// Binarization methods.
const (
	MethodOtsu     = "otsu"
	MethodGaussian = "gaussian"
)

const (
	adaptiveBlockSize = 11
	adaptiveC         = 2
)

// Binarize thresholds g with the named method. Unknown methods use Otsu.
func Binarize(g *image.Gray, method string) *image.Gray {
	if method == MethodGaussian {
		return AdaptiveGaussian(g, adaptiveBlockSize, adaptiveC)
	}
	return Otsu(g)
}

// OtsuThreshold returns the threshold that maximizes between-class variance.
// Pixels strictly above it belong to the bright class.
func OtsuThreshold(g *image.Gray) uint8 {
	g = normalize(g)
	var hist [256]int
	for _, p := range g.Pix {
		hist[p]++
	}
	total := float64(len(g.Pix))
	if total == 0 {
		return 0
	}

	var sum float64
	for i, c := range hist {
		sum += float64(i) * float64(c)
	}

	var sumB, wB, maxVar float64
	best := 0
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		mB := sumB / wB
		mF := (sum - sumB) / wF
		v := wB * wF * (mB - mF) * (mB - mF)
		if v > maxVar {
			maxVar = v
			best = t
		}
	}
	return uint8(best)
}

// Threshold maps pixels above t to 255 and the rest to 0.
func Threshold(g *image.Gray, t uint8) *image.Gray {
	g = normalize(g)
	out := image.NewGray(g.Rect)
	for i, p := range g.Pix {
		if p > t {
			out.Pix[i] = 255
		}
	}
	return out
}

// Otsu binarizes g with its Otsu threshold.
func Otsu(g *image.Gray) *image.Gray {
	return Threshold(g, OtsuThreshold(g))
}

// AdaptiveGaussian binarizes each pixel against the Gaussian-weighted mean of
// its block x block neighbourhood minus c.
func AdaptiveGaussian(g *image.Gray, block int, c float64) *image.Gray {
	g = normalize(g)
	if block < 3 {
		block = 3
	}
	if block%2 == 0 {
		block++
	}

	mean := raster.Blur(g, blockSigma(block))
	out := image.NewGray(g.Rect)
	for i, p := range g.Pix {
		if float64(p) > float64(mean.Pix[i*4])-c {
			out.Pix[i] = 255
		}
	}
	return out
}

// blockSigma derives the Gaussian sigma for a neighbourhood of size pixels.
func blockSigma(size int) float64 {
	return 0.3*((float64(size)-1)*0.5-1) + 0.8
}
