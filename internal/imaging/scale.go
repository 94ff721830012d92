package imaging

import (
	"image"

	"golang.org/x/image/draw"
)

// AssumedDPI is used when the source carries no resolution metadata.
const AssumedDPI = 200

// ScaleToDPI rescales g from AssumedDPI to targetDPI with Catmull-Rom (cubic)
// resampling. A non-positive target or a factor of 1 returns g unchanged.
func ScaleToDPI(g *image.Gray, targetDPI int) *image.Gray {
	if targetDPI <= 0 || targetDPI == AssumedDPI {
		return g
	}
	factor := float64(targetDPI) / AssumedDPI
	w, h := g.Rect.Dx(), g.Rect.Dy()
	return resample(g, int(float64(w)*factor), int(float64(h)*factor), draw.CatmullRom)
}

// ResizeIfNeeded shrinks g so its larger side equals maxDimension, keeping the
// aspect ratio. Images already within the bound are returned unchanged.
func ResizeIfNeeded(g *image.Gray, maxDimension int) *image.Gray {
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if maxDimension <= 0 || max(w, h) <= maxDimension {
		return g
	}
	var scale float64
	if h > w {
		scale = float64(maxDimension) / float64(h)
	} else {
		scale = float64(maxDimension) / float64(w)
	}
	return resample(g, int(float64(w)*scale), int(float64(h)*scale), draw.BiLinear)
}

func resample(g *image.Gray, w, h int, s draw.Scaler) *image.Gray {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	s.Scale(dst, dst.Bounds(), g, g.Bounds(), draw.Src, nil)
	return dst
}
