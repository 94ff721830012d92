package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digidoc/internal/domain"
	"digidoc/internal/extractor"
	"digidoc/internal/scoring"
	"digidoc/mocks"
)

const sampleReceipt = `ACME HARDWARE
123 Main St
Receipt #A-1001
Date: 03/15/2024
2 Hammer 25.00
Nails box 4.99
Subtotal 29.99
Tax 2.40
Total $32.39
VISA`

func TestReceiptExtractor_ExtractFields(t *testing.T) {
	e := extractor.NewReceiptExtractor()

	fields, err := e.ExtractFields(sampleReceipt)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-15", fields["receipt_date"])
	assert.Equal(t, "A-1001", fields["receipt_number"])
	assert.Equal(t, "29.99", fields["subtotal"])
	assert.Equal(t, "2.40", fields["tax_amount"])
	assert.Equal(t, "32.39", fields["total_amount"])
	assert.Equal(t, "visa", fields["payment_method"])
	assert.Equal(t, "ACME HARDWARE", fields["vendor_name"])

	items, ok := fields["line_items"].([]any)
	require.True(t, ok)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "Hammer", first["description"])
	assert.Equal(t, "2", first["quantity"])
	assert.Equal(t, "25.00", first["line_total"])

	assert.Equal(t, 1.0, e.FieldExtractionRate(fields))
	assert.Empty(t, scoring.ValidationIssues(fields))
}

func TestReceiptExtractor_EmptyText(t *testing.T) {
	fields, err := extractor.NewReceiptExtractor().ExtractFields("  \n ")
	assert.ErrorIs(t, err, domain.ErrExtractionPartial)
	assert.Empty(t, fields)
}

func TestReceiptExtractor_DetectFormat(t *testing.T) {
	e := extractor.NewReceiptExtractor()

	ok, conf := e.DetectFormat(sampleReceipt)
	assert.True(t, ok)
	assert.InDelta(t, 1.0, conf, 1e-9)

	ok, conf = e.DetectFormat("Dear customer, thank you for your letter.")
	assert.False(t, ok)
	assert.Zero(t, conf)

	ok, _ = e.DetectFormat("")
	assert.False(t, ok)
}

func TestExtractDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"on 2024/1/5", "2024-01-05", true},
		{"03-15-24", "2024-03-15", true},
		{"12/31/99", "1999-12-31", true},
		{"13/45/2024 then 02/29/2024", "2024-02-29", true},
		{"02/30/2023", "", false},
		{"no date", "", false},
	}
	for _, tt := range tests {
		got, ok := extractor.ExtractDate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseAmount(t *testing.T) {
	got, ok := extractor.ParseAmount("TOTAL: $1,234.50")
	assert.True(t, ok)
	assert.Equal(t, "1234.50", got)

	_, ok = extractor.ParseAmount("TOTAL")
	assert.False(t, ok)
}

func newMockExtractor(vendor, format string, match bool, conf float64) *mocks.MockFormatExtractor {
	m := new(mocks.MockFormatExtractor)
	m.On("Vendor").Return(vendor)
	m.On("FormatID").Return(format)
	m.On("DetectFormat", "text").Return(match, conf)
	return m
}

func TestRegistry_Detect(t *testing.T) {
	a := newMockExtractor("mead clark", "format1", true, 0.8)
	b := newMockExtractor("mead clark", "format2", true, 0.8)
	c := newMockExtractor("other", "v1", false, 0.95)
	d := newMockExtractor("better", "v1", true, 0.9)

	r := extractor.NewRegistry(a, b, c)
	got, conf, ok := r.Detect("text")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 0.8, conf)

	r.Register(d)
	got, _, ok = r.Detect("text")
	require.True(t, ok)
	assert.Same(t, d, got)
	assert.Len(t, r.All(), 4)
}

func TestRegistry_GetAndNoMatch(t *testing.T) {
	r := extractor.NewRegistry(extractor.NewReceiptExtractor())

	assert.NotNil(t, r.Get(extractor.GenericVendor, extractor.ReceiptFormatID))
	assert.Nil(t, r.Get("nobody", "v1"))

	_, _, ok := r.Detect("hello world")
	assert.False(t, ok)

	r.Register(extractor.NewReceiptExtractor())
	assert.Len(t, r.All(), 1)
}
