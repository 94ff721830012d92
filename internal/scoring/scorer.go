// Package scoring computes extraction confidence from OCR quality, field
// coverage, format detection and field validation.
package scoring

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"digidoc/internal/domain"
)

// Component weights of the overall score.
const (
	WeightOCRQuality      = 0.30
	WeightFieldExtraction = 0.40
	WeightPatternMatching = 0.20
	WeightDataValidation  = 0.10
)

// Level boundaries.
const (
	HighThreshold   = 0.85
	MediumThreshold = 0.70
)

const (
	ocrFallbackQuality     = 0.6
	defaultPatternScore    = 0.8
	optionalFieldBonus     = 0.1
	validationIssuePenalty = 0.1
)

var (
	isoDate        = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	currencyFields = []string{"total_amount", "subtotal", "tax_amount"}
	lineItemFields = []string{"description", "line_total"}
)

// OCRMetrics is the subset of an OCR result the scorer reads. Confidences are
// on the 0-100 scale with -1 marking unscored tokens.
type OCRMetrics struct {
	Text        string
	Confidences []float64
}

// MetricsFromOCR adapts an OCR result.
func MetricsFromOCR(r *domain.OCRResult) OCRMetrics {
	if r == nil {
		return OCRMetrics{}
	}
	return OCRMetrics{Text: r.Text, Confidences: r.Confidences}
}

// FormatSpec describes the fields a format promises. DetectionConfidence is
// set when the format was chosen by detection. RequiredRate is the format's
// own required field rate; when nil the scorer derives it from
// RequiredFields.
type FormatSpec struct {
	RequiredFields      []string
	OptionalFields      []string
	DetectionConfidence *float64
	RequiredRate        *float64
}

// Scorer calculates confidence scores. The zero value is ready to use.
type Scorer struct{}

// NewScorer creates a Scorer.
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate returns the weighted confidence for one extraction.
func (s *Scorer) Calculate(ocr OCRMetrics, fields map[string]any, spec FormatSpec) domain.ConfidenceScore {
	c := domain.ConfidenceComponents{
		OCRQuality:      OCRQuality(ocr),
		FieldExtraction: FieldExtraction(fields, spec),
		PatternMatching: PatternMatching(fields, spec),
	}
	issues := ValidationIssues(fields)
	c.DataValidation = math.Max(0, 1-validationIssuePenalty*float64(len(issues)))

	overall := WeightOCRQuality*c.OCRQuality +
		WeightFieldExtraction*c.FieldExtraction +
		WeightPatternMatching*c.PatternMatching +
		WeightDataValidation*c.DataValidation
	overall = math.Max(0, math.Min(1, overall))

	return domain.ConfidenceScore{
		Overall:    overall,
		Components: c,
		Level:      Level(overall),
		Issues:     issues,
	}
}

// Level maps a score to its confidence band.
func Level(score float64) domain.ConfidenceLevel {
	switch {
	case score >= HighThreshold:
		return domain.ConfidenceHigh
	case score >= MediumThreshold:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// OCRQuality is the mean scored token confidence normalized to [0,1].
func OCRQuality(m OCRMetrics) float64 {
	var sum float64
	n := 0
	for _, c := range m.Confidences {
		if c < 0 {
			continue
		}
		sum += c
		n++
	}
	if n > 0 {
		return math.Min(1, sum/float64(n)/100)
	}
	if strings.TrimSpace(m.Text) != "" {
		return ocrFallbackQuality
	}
	return 0
}

// FieldExtraction is the required field rate plus a bonus of up to 0.1 for
// optional fields, capped at 1.
func FieldExtraction(fields map[string]any, spec FormatSpec) float64 {
	var rate float64
	switch {
	case spec.RequiredRate != nil:
		rate = math.Max(0, math.Min(1, *spec.RequiredRate))
	case len(spec.RequiredFields) == 0:
		return 1
	default:
		rate = HitRate(fields, spec.RequiredFields)
	}
	if len(spec.OptionalFields) > 0 {
		rate += optionalFieldBonus * HitRate(fields, spec.OptionalFields)
	}
	return math.Min(1, rate)
}

// PatternMatching prefers the format detection confidence and falls back to
// the required field hit rate.
func PatternMatching(fields map[string]any, spec FormatSpec) float64 {
	if spec.DetectionConfidence != nil {
		return math.Max(0, math.Min(1, *spec.DetectionConfidence))
	}
	if len(spec.RequiredFields) > 0 {
		return HitRate(fields, spec.RequiredFields)
	}
	return defaultPatternScore
}

// HitRate is the fraction of names present and non-empty in fields.
func HitRate(fields map[string]any, names []string) float64 {
	if len(names) == 0 {
		return 0
	}
	found := 0
	for _, n := range names {
		if Present(fields, n) {
			found++
		}
	}
	return float64(found) / float64(len(names))
}

// Present reports whether fields has a non-empty value under name.
func Present(fields map[string]any, name string) bool {
	v, ok := fields[name]
	if !ok || v == nil {
		return false
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t) != ""
	case []any:
		return len(t) > 0
	case []map[string]any:
		return len(t) > 0
	}
	return true
}

// ValidationIssues lists the field values that fail format checks.
func ValidationIssues(fields map[string]any) []string {
	var issues []string
	if Present(fields, "receipt_date") {
		if s, ok := fields["receipt_date"].(string); !ok || !isoDate.MatchString(s) {
			issues = append(issues, "receipt_date: expected YYYY-MM-DD")
		}
	}
	for _, f := range currencyFields {
		v, ok := fields[f]
		if !ok || v == nil {
			continue
		}
		if !validCurrency(v) {
			issues = append(issues, f+": invalid amount")
		}
	}
	for i, item := range lineItems(fields["line_items"]) {
		for _, req := range lineItemFields {
			if v, ok := item[req]; !ok || v == nil {
				issues = append(issues, "line_items["+strconv.Itoa(i)+"]: missing "+req)
				break
			}
		}
	}
	return issues
}

func validCurrency(v any) bool {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		var err error
		if f, err = t.Float64(); err != nil {
			return false
		}
	case string:
		var err error
		f, err = strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", ""), 64)
		if err != nil {
			return false
		}
	default:
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f >= 0
}

func lineItems(v any) []map[string]any {
	switch t := v.(type) {
	case []map[string]any:
		return t
	case []any:
		items := make([]map[string]any, 0, len(t))
		for _, e := range t {
			m, _ := e.(map[string]any)
			items = append(items, m)
		}
		return items
	}
	return nil
}
