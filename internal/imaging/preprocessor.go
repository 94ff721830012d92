package imaging

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"

	"digidoc/internal/config"
	"digidoc/internal/logging"
)

// Result is the output of one preprocessing run.
type Result struct {
	// Original is the decoded source in grayscale.
	Original *image.Gray
	// Image is the canonical raster.
	Image     *image.Gray
	Format    string
	SkewAngle float64
	Rotated   bool
}

// Preprocessor runs the fixed normalization pipeline:
// deskew, denoise, binarize, scale-normalize, border-crop.
type Preprocessor struct {
	logger *slog.Logger
}

// NewPreprocessor creates a Preprocessor.
func NewPreprocessor(logger *slog.Logger) *Preprocessor {
	return &Preprocessor{logger: logging.OrDiscard(logger)}
}

// Preprocess decodes raw and normalizes it according to cfg. Undecodable input
// fails with an error wrapping domain.ErrImageDecode.
func (p *Preprocessor) Preprocess(ctx context.Context, raw []byte, cfg config.PreprocessingConfig) (*Result, error) {
	gray, format, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	res := &Result{Original: gray, Format: format}

	img := gray
	if cfg.DeskewEnabled {
		var rotated *image.Gray
		rotated, res.SkewAngle = Deskew(img)
		res.Rotated = rotated != img
		img = rotated
		p.logger.Debug("imaging.Preprocessor.Preprocess: deskew",
			"angle", res.SkewAngle, "rotated", res.Rotated)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("imaging.Preprocessor.Preprocess: %w", err)
	}

	img, err = Denoise(ctx, img, cfg.DenoiseLevel)
	if err != nil {
		return nil, err
	}

	img = Binarize(img, cfg.BinarizationMethod)
	img = ScaleToDPI(img, cfg.TargetDPI)

	if cfg.BorderRemovalEnabled {
		img = CropBorders(img)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("imaging.Preprocessor.Preprocess: %w", err)
	}

	res.Image = img
	p.logger.Debug("imaging.Preprocessor.Preprocess: done",
		"format", format,
		"src_width", gray.Rect.Dx(), "src_height", gray.Rect.Dy(),
		"width", img.Rect.Dx(), "height", img.Rect.Dy())
	return res, nil
}

// PreprocessFile reads path and runs Preprocess on its contents.
func (p *Preprocessor) PreprocessFile(ctx context.Context, path string, cfg config.PreprocessingConfig) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imaging.Preprocessor.PreprocessFile: %w", err)
	}
	return p.Preprocess(ctx, raw, cfg)
}

// ComparisonGap is the black gutter between the two halves of a comparison image.
const ComparisonGap = 20

// ComparisonImage renders before and after side by side.
func ComparisonImage(before, after image.Image) *image.RGBA {
	return SideBySide(before, after, ComparisonGap)
}
