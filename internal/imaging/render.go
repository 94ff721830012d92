package imaging

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Box is an annotated rectangle drawn on a visualization.
type Box struct {
	Rect  image.Rectangle
	Color color.RGBA
	Label string
}

// SideBySide places left and right next to each other on a black canvas with
// gap pixels between them.
func SideBySide(left, right image.Image, gap int) *image.RGBA {
	lb, rb := left.Bounds(), right.Bounds()
	w := lb.Dx() + gap + rb.Dx()
	h := max(lb.Dy(), rb.Dy())
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.Black), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, 0, lb.Dx(), lb.Dy()), left, lb.Min, draw.Src)
	draw.Draw(out, image.Rect(lb.Dx()+gap, 0, w, rb.Dy()), right, rb.Min, draw.Src)
	return out
}

// Annotate copies base into an RGBA canvas, outlines every box with its label
// above it, and writes caption lines in the top-left corner.
func Annotate(base image.Image, boxes []Box, caption []string) *image.RGBA {
	b := base.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), base, b.Min, draw.Src)

	for _, box := range boxes {
		r := box.Rect.Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		strokeRect(out, r, box.Color, 2)
		if box.Label != "" {
			y := r.Min.Y - 4
			if y < 12 {
				y = r.Min.Y + 14
			}
			drawText(out, box.Label, r.Min.X+2, y, box.Color)
		}
	}

	red := color.RGBA{R: 220, A: 255}
	for i, line := range caption {
		drawText(out, line, 10, 20+15*i, red)
	}
	return out
}

func strokeRect(dst *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	src := image.NewUniform(c)
	t := min(thickness, r.Dx(), r.Dy())
	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e, src, image.Point{}, draw.Src)
	}
}

func drawText(dst *image.RGBA, s string, x, y int, c color.RGBA) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}
