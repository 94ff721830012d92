// Package imaging normalizes scanned document images. All operations work on
// *image.Gray rasters whose bounds start at the origin.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // decoder registration
	_ "image/jpeg" // decoder registration
	"image/png"
	"os"

	_ "golang.org/x/image/bmp" // decoder registration
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff" // decoder registration
	_ "golang.org/x/image/webp" // decoder registration

	"digidoc/internal/domain"
)

// Decode decodes raw image bytes into a grayscale raster. It returns the
// detected format name alongside the image.
func Decode(data []byte) (*image.Gray, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("imaging.Decode: %w: empty input", domain.ErrImageDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("imaging.Decode: %w: %v", domain.ErrImageDecode, err)
	}
	return ToGray(img), format, nil
}

// LoadFile reads and decodes an image file.
func LoadFile(path string) (*image.Gray, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imaging.LoadFile: %w", err)
	}
	g, _, err := Decode(data)
	return g, err
}

// ToGray converts any image to an origin-based grayscale copy using the
// standard luma weights.
func ToGray(img image.Image) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Clone returns a deep copy of g.
func Clone(g *image.Gray) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Rect.Dx(), g.Rect.Dy()))
	for y := 0; y < out.Rect.Dy(); y++ {
		copy(out.Pix[y*out.Stride:y*out.Stride+out.Rect.Dx()], g.Pix[g.PixOffset(g.Rect.Min.X, g.Rect.Min.Y+y):])
	}
	return out
}

// EncodePNG encodes img as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("imaging.EncodePNG: %w", err)
	}
	return buf.Bytes(), nil
}

// normalize returns g unchanged when it already starts at the origin with a
// tight stride, otherwise a compact copy.
func normalize(g *image.Gray) *image.Gray {
	if g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	return Clone(g)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampByte(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
