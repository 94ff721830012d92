package imaging

import (
	"image"

	raster "github.com/disintegration/imaging"
)

// tan(22.5°)
const tan22 = 0.4142135623730950488

// Sobel kernels scaled by 1/8 so a response fits a biased byte.
var (
	sobelX = [9]float64{
		-1.0 / 8, 0, 1.0 / 8,
		-2.0 / 8, 0, 2.0 / 8,
		-1.0 / 8, 0, 1.0 / 8,
	}
	sobelY = [9]float64{
		-1.0 / 8, -2.0 / 8, -1.0 / 8,
		0, 0, 0,
		1.0 / 8, 2.0 / 8, 1.0 / 8,
	}
	sobelOpts = &raster.ConvolveOptions{Bias: 128}
)

// Canny returns an edge map of g (true = edge) using 3x3 Sobel gradients, L1
// magnitude, non-maximum suppression and hysteresis between low and high.
func Canny(g *image.Gray, low, high float64) []bool {
	g = normalize(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	n := w * h
	gx := sobel(g, sobelX)
	gy := sobel(g, sobelY)
	mag := make([]int, n)
	for i := range mag {
		mag[i] = abs(gx[i]) + abs(gy[i])
	}

	at := func(x, y int) int {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	const (
		none = iota
		weak
		strong
	)
	class := make([]uint8, n)
	var stack []int
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if float64(m) <= low {
				continue
			}
			ax, ay := float64(abs(gx[i])), float64(abs(gy[i]))
			tg22x := ax * tan22
			tg67x := tg22x + 2*ax

			var isMax bool
			switch {
			case ay < tg22x:
				isMax = m > at(x-1, y) && m >= at(x+1, y)
			case ay > tg67x:
				isMax = m > at(x, y-1) && m >= at(x, y+1)
			default:
				s := 1
				if (gx[i] < 0) != (gy[i] < 0) {
					s = -1
				}
				isMax = m > at(x-s, y-1) && m > at(x+s, y+1)
			}
			if !isMax {
				continue
			}
			if float64(m) > high {
				class[i] = strong
				stack = append(stack, i)
			} else {
				class[i] = weak
			}
		}
	}

	edges := make([]bool, n)
	for _, i := range stack {
		edges[i] = true
	}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		x, y := i%w, i/w
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				nx, ny := x+dx, y+dy
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				j := ny*w + nx
				if class[j] == weak && !edges[j] {
					edges[j] = true
					stack = append(stack, j)
				}
			}
		}
	}
	return edges
}

// sobel returns the signed gradient of g for kernel k. Responses are
// quantized to multiples of 8 and borders replicate the edge pixels.
func sobel(g *image.Gray, k [9]float64) []int {
	biased := raster.Convolve3x3(g, k, sobelOpts)
	out := make([]int, g.Rect.Dx()*g.Rect.Dy())
	for i := range out {
		out[i] = (int(biased.Pix[i*4]) - 128) * 8
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
