package port

import (
	"context"

	"digidoc/internal/domain"
)

// OCREngine recognizes text in an image file.
type OCREngine interface {
	ProcessImage(ctx context.Context, imagePath string) (*domain.OCRResult, error)
}

// FormatExtractor pulls structured fields out of OCR text for one vendor
// format.
type FormatExtractor interface {
	Vendor() string
	FormatID() string
	// DetectFormat reports whether text looks like this format and how sure
	// the detection is, in [0,1].
	DetectFormat(text string) (bool, float64)
	// ExtractFields returns the fields found. A non-nil error with a non-nil
	// map signals a partial extraction.
	ExtractFields(text string) (map[string]any, error)
	RequiredFields() []string
	OptionalFields() []string
	FieldExtractionRate(fields map[string]any) float64
}
