package fingerprint

import (
	"image"
	"image/color"

	"digidoc/internal/domain"
	"digidoc/internal/imaging"
)

var zoneColors = map[domain.ZoneType]color.RGBA{
	domain.ZoneHeader: {R: 30, G: 90, B: 230, A: 255},
	domain.ZoneTable:  {R: 20, G: 170, B: 60, A: 255},
	domain.ZoneFooter: {R: 230, G: 120, B: 20, A: 255},
	domain.ZoneLogo:   {R: 200, G: 30, B: 200, A: 255},
	domain.ZoneOther:  {R: 128, G: 128, B: 128, A: 255},
}

// Visualize draws the fingerprint's zones over img. Zone ratios are mapped
// onto img's own dimensions.
func Visualize(img image.Image, fp domain.Fingerprint, caption []string) *image.RGBA {
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	boxes := make([]imaging.Box, 0, len(fp.Zones))
	for _, z := range fp.Zones {
		x0 := int(z.XRatio * w)
		y0 := int(z.YRatio * h)
		x1 := int((z.XRatio + z.WidthRatio) * w)
		y1 := int((z.YRatio + z.HeightRatio) * h)
		boxes = append(boxes, imaging.Box{
			Rect:  image.Rect(x0, y0, x1, y1),
			Color: zoneColors[z.Type],
			Label: string(z.Type),
		})
	}
	return imaging.Annotate(img, boxes, caption)
}
