package imaging

import "image"

// ContentThreshold is the brightest gray level still considered content.
const ContentThreshold = 240

// ContentBounds returns the bounding box of all pixels at or below
// ContentThreshold. The second result is false when there is no content.
func ContentBounds(g *image.Gray) (image.Rectangle, bool) {
	g = normalize(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	minX, minY, maxX, maxY := w, h, -1, -1
	for y := 0; y < h; y++ {
		row := g.Pix[y*w : y*w+w]
		for x, p := range row {
			if p > ContentThreshold {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CropBorders crops g to its content box padded by 5% of the box size (at
// least 10px) on each side, clamped to the image. Images without content are
// returned unchanged.
func CropBorders(g *image.Gray) *image.Gray {
	g = normalize(g)
	box, ok := ContentBounds(g)
	if !ok {
		return g
	}
	w, h := g.Rect.Dx(), g.Rect.Dy()
	bw, bh := box.Dx(), box.Dy()
	padX := max(10, int(float64(bw)*0.05))
	padY := max(10, int(float64(bh)*0.05))

	x := max(0, box.Min.X-padX)
	y := max(0, box.Min.Y-padY)
	cw := min(w-x, bw+2*padX)
	ch := min(h-y, bh+2*padY)

	return Clone(g.SubImage(image.Rect(x, y, x+cw, y+ch)).(*image.Gray))
}
