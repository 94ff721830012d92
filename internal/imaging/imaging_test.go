package imaging_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/imaging"
)

func whiteCanvas(w, h int) *image.Gray {
	g := image.NewGray(image.Rect(0, 0, w, h))
	for i := range g.Pix {
		g.Pix[i] = 255
	}
	return g
}

func fillRect(g *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			g.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

// barsPage draws long horizontal bars resembling text lines.
func barsPage() *image.Gray {
	g := whiteCanvas(600, 400)
	for y := 60; y < 360; y += 60 {
		fillRect(g, image.Rect(100, y, 500, y+8), 0)
	}
	return g
}

func encode(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecode_InvalidBytes(t *testing.T) {
	_, _, err := imaging.Decode([]byte("definitely not an image"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrImageDecode)

	_, _, err = imaging.Decode(nil)
	assert.ErrorIs(t, err, domain.ErrImageDecode)
}

func TestDecode_ColorToGray(t *testing.T) {
	rgba := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for i := range rgba.Pix {
		rgba.Pix[i] = 255
	}
	g, format, err := imaging.Decode(encode(t, rgba))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, image.Rect(0, 0, 4, 2), g.Bounds())
	assert.Equal(t, uint8(255), g.GrayAt(1, 1).Y)
}

func TestOtsuThreshold_Bimodal(t *testing.T) {
	g := whiteCanvas(100, 100)
	fillRect(g, image.Rect(0, 0, 100, 100), 200)
	fillRect(g, image.Rect(0, 0, 50, 100), 50)

	th := imaging.OtsuThreshold(g)
	assert.GreaterOrEqual(t, th, uint8(50))
	assert.Less(t, th, uint8(200))

	bin := imaging.Otsu(g)
	assert.Equal(t, uint8(0), bin.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(255), bin.GrayAt(90, 10).Y)
}

func TestBinarize_UnknownMethodFallsBackToOtsu(t *testing.T) {
	g := barsPage()
	assert.Equal(t, imaging.Otsu(g).Pix, imaging.Binarize(g, "sauvola").Pix)
}

func TestAdaptiveGaussian_UniformIsWhite(t *testing.T) {
	g := whiteCanvas(30, 30)
	fillRect(g, g.Rect, 128)

	out := imaging.AdaptiveGaussian(g, 11, 2)
	for _, p := range out.Pix {
		require.Equal(t, uint8(255), p)
	}
}

func TestAdaptiveGaussian_DarkStrokeOnLightBackground(t *testing.T) {
	g := whiteCanvas(40, 40)
	fillRect(g, image.Rect(18, 0, 21, 40), 30)

	out := imaging.Binarize(g, imaging.MethodGaussian)
	assert.Equal(t, uint8(0), out.GrayAt(19, 20).Y)
	assert.Equal(t, uint8(255), out.GrayAt(5, 20).Y)
}

func TestCanny_VerticalStepEdge(t *testing.T) {
	g := whiteCanvas(40, 40)
	fillRect(g, image.Rect(0, 0, 20, 40), 0)

	edges := imaging.Canny(g, 50, 150)
	for y := 0; y < 40; y++ {
		require.True(t, edges[y*40+19], "row %d", y)
		require.False(t, edges[y*40+20], "row %d", y)
		require.False(t, edges[y*40+5], "row %d", y)
	}
}

func TestCanny_FlatImageHasNoEdges(t *testing.T) {
	g := whiteCanvas(20, 20)
	for _, e := range imaging.Canny(g, 50, 150) {
		require.False(t, e)
	}
}

func TestEstimateSkew_HorizontalLines(t *testing.T) {
	angle, n := imaging.EstimateSkew(barsPage())
	require.Positive(t, n)
	assert.InDelta(t, 0, angle, 0.5)
}

func TestDeskew_NoOpWhenStraight(t *testing.T) {
	g := barsPage()
	out, angle := imaging.Deskew(g)
	assert.LessOrEqual(t, math.Abs(angle), imaging.MinSkewDegrees)
	assert.Same(t, g, out)
}

func TestDeskew_NoOpOnBlankPage(t *testing.T) {
	g := whiteCanvas(200, 200)
	out, angle := imaging.Deskew(g)
	assert.Zero(t, angle)
	assert.Same(t, g, out)
}

func TestDeskew_CorrectsRotation(t *testing.T) {
	skewed := imaging.Rotate(barsPage(), 3)

	angle, n := imaging.EstimateSkew(skewed)
	require.Positive(t, n)
	assert.InDelta(t, -3, angle, 1.0)

	fixed, applied := imaging.Deskew(skewed)
	assert.NotSame(t, skewed, fixed)
	assert.InDelta(t, -3, applied, 1.0)

	residual, _ := imaging.EstimateSkew(fixed)
	assert.InDelta(t, 0, residual, 1.0)
}

func TestRotate_ZeroIsIdentity(t *testing.T) {
	g := barsPage()
	assert.Equal(t, g.Pix, imaging.Rotate(g, 0).Pix)
}

func TestDenoise_UniformStaysUniform(t *testing.T) {
	g := whiteCanvas(32, 32)
	fillRect(g, g.Rect, 90)

	out, err := imaging.Denoise(context.Background(), g, imaging.DenoiseMedium)
	require.NoError(t, err)
	for _, p := range out.Pix {
		require.Equal(t, uint8(90), p)
	}
}

func TestDenoise_SmoothsIsolatedSpeckle(t *testing.T) {
	g := whiteCanvas(40, 40)
	fillRect(g, g.Rect, 200)
	g.SetGray(20, 20, color.Gray{Y: 190})

	out, err := imaging.Denoise(context.Background(), g, imaging.DenoiseHigh)
	require.NoError(t, err)
	assert.Greater(t, out.GrayAt(20, 20).Y, uint8(190))
}

func TestDenoise_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := imaging.Denoise(ctx, whiteCanvas(20, 20), imaging.DenoiseLow)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDenoiseParams_UnknownLevelIsMedium(t *testing.T) {
	assert.Equal(t, imaging.DenoiseParams(imaging.DenoiseMedium), imaging.DenoiseParams("extreme"))
	assert.InDelta(t, 3, imaging.DenoiseParams(imaging.DenoiseLow).H, 1e-9)
	assert.InDelta(t, 7, imaging.DenoiseParams(imaging.DenoiseHigh).H, 1e-9)
}

func TestScaleToDPI(t *testing.T) {
	g := whiteCanvas(200, 100)

	assert.Same(t, g, imaging.ScaleToDPI(g, imaging.AssumedDPI))
	assert.Same(t, g, imaging.ScaleToDPI(g, 0))

	up := imaging.ScaleToDPI(g, 300)
	assert.Equal(t, 300, up.Bounds().Dx())
	assert.Equal(t, 150, up.Bounds().Dy())
}

func TestResizeIfNeeded(t *testing.T) {
	small := whiteCanvas(300, 200)
	assert.Same(t, small, imaging.ResizeIfNeeded(small, 2000))

	wide := whiteCanvas(4000, 1000)
	out := imaging.ResizeIfNeeded(wide, 2000)
	assert.Equal(t, 2000, out.Bounds().Dx())
	assert.Equal(t, 500, out.Bounds().Dy())

	tall := whiteCanvas(1000, 4000)
	out = imaging.ResizeIfNeeded(tall, 2000)
	assert.Equal(t, 500, out.Bounds().Dx())
	assert.Equal(t, 2000, out.Bounds().Dy())
}

func TestCropBorders(t *testing.T) {
	g := whiteCanvas(400, 300)
	fillRect(g, image.Rect(100, 100, 200, 150), 0)

	out := imaging.CropBorders(g)
	assert.Equal(t, 120, out.Bounds().Dx())
	assert.Equal(t, 70, out.Bounds().Dy())
	assert.Equal(t, uint8(0), out.GrayAt(10, 10).Y)
	assert.Equal(t, uint8(255), out.GrayAt(5, 5).Y)
}

func TestCropBorders_ClampsToImage(t *testing.T) {
	g := whiteCanvas(100, 100)
	fillRect(g, image.Rect(0, 0, 95, 95), 0)

	out := imaging.CropBorders(g)
	assert.Equal(t, image.Rect(0, 0, 100, 100), out.Bounds())
}

func TestCropBorders_NoContent(t *testing.T) {
	g := whiteCanvas(50, 50)
	assert.Same(t, g, imaging.CropBorders(g))
}

func TestPreprocess_Deterministic(t *testing.T) {
	src := whiteCanvas(160, 120)
	fillRect(src, image.Rect(20, 10, 140, 25), 10)
	fillRect(src, image.Rect(20, 40, 140, 90), 60)
	fillRect(src, image.Rect(20, 100, 140, 110), 10)
	raw := encode(t, src)

	cfg := config.PreprocessingConfig{
		DeskewEnabled:        true,
		DenoiseLevel:         "low",
		BinarizationMethod:   "otsu",
		TargetDPI:            300,
		BorderRemovalEnabled: true,
	}
	p := imaging.NewPreprocessor(nil)

	first, err := p.Preprocess(context.Background(), raw, cfg)
	require.NoError(t, err)
	second, err := p.Preprocess(context.Background(), raw, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Image.Bounds(), second.Image.Bounds())
	assert.Equal(t, first.Image.Pix, second.Image.Pix)
	assert.False(t, first.Rotated)
	assert.Equal(t, src.Bounds(), first.Original.Bounds())
}

func TestPreprocess_DecodeFailure(t *testing.T) {
	p := imaging.NewPreprocessor(nil)
	_, err := p.Preprocess(context.Background(), []byte{0x00, 0x01}, config.PreprocessingConfig{})
	assert.ErrorIs(t, err, domain.ErrImageDecode)
}

func TestSideBySide(t *testing.T) {
	out := imaging.SideBySide(whiteCanvas(30, 20), whiteCanvas(40, 50), 20)
	assert.Equal(t, image.Rect(0, 0, 90, 50), out.Bounds())
	r, g, b, _ := out.At(35, 5).RGBA()
	assert.Zero(t, r+g+b)
}

func TestAnnotate(t *testing.T) {
	base := whiteCanvas(100, 100)
	out := imaging.Annotate(base, []imaging.Box{{
		Rect:  image.Rect(10, 30, 60, 80),
		Color: color.RGBA{G: 200, A: 255},
		Label: "header",
	}}, []string{"score 0.9"})

	assert.Equal(t, base.Bounds(), out.Bounds())
	assert.Equal(t, color.RGBA{G: 200, A: 255}, out.RGBAAt(10, 50))
}

func TestPreprocessFile(t *testing.T) {
	path := t.TempDir() + "/page.png"
	require.NoError(t, os.WriteFile(path, encode(t, barsPage()), 0o644))

	p := imaging.NewPreprocessor(nil)
	res, err := p.PreprocessFile(context.Background(), path, config.PreprocessingConfig{DenoiseLevel: "low"})
	require.NoError(t, err)
	assert.Equal(t, "png", res.Format)

	_, err = p.PreprocessFile(context.Background(), path+".missing", config.PreprocessingConfig{})
	assert.Error(t, err)
}

func TestComparisonImage(t *testing.T) {
	out := imaging.ComparisonImage(whiteCanvas(30, 20), whiteCanvas(30, 20))
	assert.Equal(t, 30+imaging.ComparisonGap+30, out.Bounds().Dx())
}
