package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"digidoc/internal/domain"
	"digidoc/internal/scoring"
)

func ptr(f float64) *float64 { return &f }

var receiptSpec = scoring.FormatSpec{
	RequiredFields: []string{"receipt_date", "total_amount"},
	OptionalFields: []string{"subtotal", "tax_amount"},
}

func TestLevel_Boundaries(t *testing.T) {
	tests := []struct {
		score float64
		want  domain.ConfidenceLevel
	}{
		{1.0, domain.ConfidenceHigh},
		{0.85, domain.ConfidenceHigh},
		{0.849999, domain.ConfidenceMedium},
		{0.70, domain.ConfidenceMedium},
		{0.699999, domain.ConfidenceLow},
		{0, domain.ConfidenceLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scoring.Level(tt.score), "score %v", tt.score)
	}
}

func TestOCRQuality(t *testing.T) {
	t.Run("ignores unscored tokens", func(t *testing.T) {
		got := scoring.OCRQuality(scoring.OCRMetrics{Text: "a b", Confidences: []float64{-1, 90, 70, -1}})
		assert.InDelta(t, 0.8, got, 1e-9)
	})
	t.Run("text without confidences", func(t *testing.T) {
		got := scoring.OCRQuality(scoring.OCRMetrics{Text: "TOTAL 12.00"})
		assert.Equal(t, 0.6, got)
	})
	t.Run("only unscored tokens fall back to text", func(t *testing.T) {
		got := scoring.OCRQuality(scoring.OCRMetrics{Text: "x", Confidences: []float64{-1}})
		assert.Equal(t, 0.6, got)
	})
	t.Run("nothing", func(t *testing.T) {
		assert.Zero(t, scoring.OCRQuality(scoring.OCRMetrics{}))
	})
}

func TestFieldExtraction(t *testing.T) {
	t.Run("no required fields", func(t *testing.T) {
		assert.Equal(t, 1.0, scoring.FieldExtraction(nil, scoring.FormatSpec{}))
	})
	t.Run("partial with optional bonus", func(t *testing.T) {
		fields := map[string]any{"receipt_date": "2024-01-05", "subtotal": "10.00"}
		assert.InDelta(t, 0.5+0.05, scoring.FieldExtraction(fields, receiptSpec), 1e-9)
	})
	t.Run("capped at one", func(t *testing.T) {
		fields := map[string]any{
			"receipt_date": "2024-01-05", "total_amount": 12.5,
			"subtotal": 10.0, "tax_amount": 2.5,
		}
		assert.Equal(t, 1.0, scoring.FieldExtraction(fields, receiptSpec))
	})
	t.Run("empty strings are missing", func(t *testing.T) {
		fields := map[string]any{"receipt_date": "  ", "total_amount": nil}
		assert.Zero(t, scoring.FieldExtraction(fields, receiptSpec))
	})
	t.Run("format rate overrides hit rate", func(t *testing.T) {
		fields := map[string]any{"receipt_date": "2024-01-05", "total_amount": 12.5}
		spec := receiptSpec
		spec.RequiredRate = ptr(0.25)
		assert.InDelta(t, 0.25, scoring.FieldExtraction(fields, spec), 1e-9)
	})
	t.Run("format rate with no required fields", func(t *testing.T) {
		assert.InDelta(t, 0.4, scoring.FieldExtraction(nil, scoring.FormatSpec{RequiredRate: ptr(0.4)}), 1e-9)
	})
}

func TestPatternMatching(t *testing.T) {
	fields := map[string]any{"receipt_date": "2024-01-05"}
	assert.Equal(t, 0.75, scoring.PatternMatching(fields, scoring.FormatSpec{DetectionConfidence: ptr(0.75)}))
	assert.Equal(t, 0.5, scoring.PatternMatching(fields, receiptSpec))
	assert.Equal(t, 0.8, scoring.PatternMatching(fields, scoring.FormatSpec{}))
}

func TestValidationIssues(t *testing.T) {
	fields := map[string]any{
		"receipt_date": "01/05/2024",
		"total_amount": "abc",
		"subtotal":     -3.0,
		"tax_amount":   "1,250.00",
		"line_items": []any{
			map[string]any{"description": "2x4 stud", "line_total": 4.5},
			map[string]any{"description": "nails"},
			map[string]any{"line_total": 1.0},
		},
	}
	issues := scoring.ValidationIssues(fields)
	assert.Len(t, issues, 5)

	assert.Empty(t, scoring.ValidationIssues(map[string]any{
		"receipt_date": "2024-01-05",
		"total_amount": "12.50",
	}))
}

func TestCalculate(t *testing.T) {
	s := scoring.NewScorer()

	t.Run("perfect extraction", func(t *testing.T) {
		fields := map[string]any{
			"receipt_date": "2024-01-05", "total_amount": "12.50",
			"subtotal": "10.00", "tax_amount": "2.50",
		}
		got := s.Calculate(scoring.OCRMetrics{Text: "x", Confidences: []float64{100}}, fields, receiptSpec)
		assert.InDelta(t, 0.3+0.4+0.2+0.1, got.Overall, 1e-9)
		assert.Equal(t, domain.ConfidenceHigh, got.Level)
		assert.Empty(t, got.Issues)
	})

	t.Run("weighted blend", func(t *testing.T) {
		fields := map[string]any{"receipt_date": "Jan 5", "total_amount": "12.50"}
		got := s.Calculate(scoring.OCRMetrics{Text: "x"}, fields, scoring.FormatSpec{
			RequiredFields:      []string{"receipt_date", "total_amount"},
			DetectionConfidence: ptr(0.5),
		})
		want := 0.3*0.6 + 0.4*1.0 + 0.2*0.5 + 0.1*0.9
		assert.InDelta(t, want, got.Overall, 1e-9)
		assert.Equal(t, domain.ConfidenceMedium, got.Level)
		assert.Equal(t, 0.9, got.Components.DataValidation)
	})

	t.Run("validation floors at zero", func(t *testing.T) {
		items := make([]any, 12)
		for i := range items {
			items[i] = map[string]any{}
		}
		got := s.Calculate(scoring.OCRMetrics{}, map[string]any{"line_items": items}, scoring.FormatSpec{})
		assert.Zero(t, got.Components.DataValidation)
		assert.GreaterOrEqual(t, got.Overall, 0.0)
		assert.LessOrEqual(t, got.Overall, 1.0)
	})
}

func TestMetricsFromOCR(t *testing.T) {
	assert.Equal(t, scoring.OCRMetrics{}, scoring.MetricsFromOCR(nil))
	m := scoring.MetricsFromOCR(&domain.OCRResult{Text: "t", Confidences: []float64{50}})
	assert.Equal(t, "t", m.Text)
	assert.Equal(t, []float64{50}, m.Confidences)
}
