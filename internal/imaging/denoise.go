package imaging

import (
	"context"
	"fmt"
	"image"
	"math"
)

// Denoise levels.
const (
	DenoiseLow    = "low"
	DenoiseMedium = "medium"
	DenoiseHigh   = "high"
)

// NLMParams configures non-local means filtering.
type NLMParams struct {
	H      float64 // filter strength
	Patch  int     // template window size (odd)
	Search int     // search window size (odd)
}

// DenoiseParams maps a level name to filter parameters. Unknown levels use medium.
func DenoiseParams(level string) NLMParams {
	switch level {
	case DenoiseLow:
		return NLMParams{H: 3, Patch: 7, Search: 21}
	case DenoiseHigh:
		return NLMParams{H: 7, Patch: 7, Search: 21}
	default:
		return NLMParams{H: 5, Patch: 7, Search: 21}
	}
}

// weights below this are treated as zero
const nlmMinWeight = 1e-3

// Denoise applies non-local means with the parameters for level.
func Denoise(ctx context.Context, g *image.Gray, level string) (*image.Gray, error) {
	return NonLocalMeans(ctx, g, DenoiseParams(level))
}

// NonLocalMeans replaces every pixel with the weighted mean of the pixels in
// its search window, weighting each candidate by the similarity of the patches
// around the two pixels: w = exp(-mean squared patch difference / h²).
// Patch distances are accumulated per search offset with integral images.
func NonLocalMeans(ctx context.Context, g *image.Gray, p NLMParams) (*image.Gray, error) {
	g = normalize(g)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	if w == 0 || h == 0 || p.H <= 0 {
		return g, nil
	}
	pr, sr := p.Patch/2, p.Search/2
	pad := pr + sr
	pw, ph := w+2*pad, h+2*pad

	padded := make([]int32, pw*ph)
	for y := 0; y < ph; y++ {
		sy := clampInt(y-pad, 0, h-1)
		for x := 0; x < pw; x++ {
			padded[y*pw+x] = int32(g.Pix[sy*w+clampInt(x-pad, 0, w-1)])
		}
	}

	// weight lookup by integer SSD; entries past the table are ignored
	area := float64((2*pr + 1) * (2*pr + 1))
	denom := area * p.H * p.H
	maxSSD := int64(math.Ceil(-math.Log(nlmMinWeight) * denom))
	table := make([]float64, maxSSD+1)
	for i := range table {
		table[i] = math.Exp(-float64(i) / denom)
	}

	dw, dh := w+2*pr, h+2*pr
	diff := make([]int64, dw*dh)
	istride := dw + 1
	integ := make([]int64, istride*(dh+1))
	sumW := make([]float64, w*h)
	sumV := make([]float64, w*h)
	side := 2*pr + 1

	for oy := -sr; oy <= sr; oy++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("imaging.NonLocalMeans: %w", err)
		}
		for ox := -sr; ox <= sr; ox++ {
			for qy := 0; qy < dh; qy++ {
				py := qy - pr + pad
				row := py * pw
				nrow := (py + oy) * pw
				for qx := 0; qx < dw; qx++ {
					px := qx - pr + pad
					d := int64(padded[row+px] - padded[nrow+px+ox])
					diff[qy*dw+qx] = d * d
				}
			}
			for qy := 0; qy < dh; qy++ {
				var rowSum int64
				for qx := 0; qx < dw; qx++ {
					rowSum += diff[qy*dw+qx]
					integ[(qy+1)*istride+qx+1] = integ[qy*istride+qx+1] + rowSum
				}
			}
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					x2, y2 := x+side, y+side
					ssd := integ[y2*istride+x2] - integ[y*istride+x2] - integ[y2*istride+x] + integ[y*istride+x]
					if ssd > maxSSD {
						continue
					}
					wt := table[ssd]
					i := y*w + x
					sumW[i] += wt
					sumV[i] += wt * float64(padded[(y+pad+oy)*pw+x+pad+ox])
				}
			}
		}
	}

	out := image.NewGray(g.Rect)
	for i := range out.Pix {
		if sumW[i] == 0 {
			out.Pix[i] = g.Pix[i]
			continue
		}
		out.Pix[i] = clampByte(sumV[i] / sumW[i])
	}
	return out, nil
}
