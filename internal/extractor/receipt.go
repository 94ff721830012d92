package extractor

import (
	"fmt"
	"regexp"
	"strings"

	"digidoc/internal/domain"
	"digidoc/internal/scoring"
)

// Identity of the built-in receipt format.
const (
	GenericVendor   = "generic"
	ReceiptFormatID = "receipt_v1"
)

// detectThreshold is the minimum indicator score for DetectFormat to match.
const detectThreshold = 0.5

var (
	lineItemPattern = regexp.MustCompile(`^(?:(\d+(?:\.\d+)?)\s*[xX@]?\s+)?(.*?[A-Za-z].*?)\s+\$?(-?[\d,]+\.\d{2})$`)
	paymentPattern  = regexp.MustCompile(`(?i)\b(cash|check|credit|debit|visa|mastercard|amex|ach)\b`)

	totalLabels    = []string{"grand total", "amount due", "balance due", "total"}
	subtotalLabels = []string{"subtotal", "sub total", "sub-total"}
	taxLabels      = []string{"sales tax", "tax"}
	summaryWords   = []string{"total", "tax", "subtotal", "balance", "amount due", "change", "tender", "cash", "visa", "credit", "debit"}
	receiptWords   = []string{"receipt", "invoice", "total", "subtotal", "tax"}
)

// ReceiptExtractor reads common receipt fields from free text: dates, totals,
// tax, line items and payment method. It is the fallback format when no
// vendor-specific extractor recognizes a document.
type ReceiptExtractor struct{}

// NewReceiptExtractor creates the generic receipt extractor.
func NewReceiptExtractor() *ReceiptExtractor {
	return &ReceiptExtractor{}
}

func (e *ReceiptExtractor) Vendor() string   { return GenericVendor }
func (e *ReceiptExtractor) FormatID() string { return ReceiptFormatID }

func (e *ReceiptExtractor) RequiredFields() []string {
	return []string{"receipt_date", "total_amount"}
}

func (e *ReceiptExtractor) OptionalFields() []string {
	return []string{"receipt_number", "subtotal", "tax_amount", "vendor_name", "line_items", "payment_method"}
}

// DetectFormat scores date, total, receipt vocabulary and amount indicators.
func (e *ReceiptExtractor) DetectFormat(text string) (bool, float64) {
	if strings.TrimSpace(text) == "" {
		return false, 0
	}
	lower := strings.ToLower(text)
	var conf float64
	if _, ok := ExtractDate(text); ok {
		conf += 0.3
	}
	if strings.Contains(lower, "total") {
		conf += 0.3
	}
	if containsAny(lower, receiptWords[:2]) {
		conf += 0.2
	}
	if amountPattern.MatchString(text) {
		conf += 0.2
	}
	return conf >= detectThreshold, conf
}

// ExtractFields returns every field found. Empty text yields an empty map and
// domain.ErrExtractionPartial.
func (e *ReceiptExtractor) ExtractFields(text string) (map[string]any, error) {
	fields := map[string]any{}
	if strings.TrimSpace(text) == "" {
		return fields, fmt.Errorf("extractor.ReceiptExtractor.ExtractFields: %w: no text", domain.ErrExtractionPartial)
	}

	lines := splitLines(text)
	if d, ok := ExtractDate(text); ok {
		fields["receipt_date"] = d
	}
	if n, ok := ExtractReceiptNumber(text); ok {
		fields["receipt_number"] = n
	}
	if v, ok := labeledAmount(lines, subtotalLabels, nil); ok {
		fields["subtotal"] = v
	}
	if v, ok := labeledAmount(lines, taxLabels, nil); ok {
		fields["tax_amount"] = v
	}
	if v, ok := labeledAmount(lines, totalLabels, subtotalLabels); ok {
		fields["total_amount"] = v
	}
	if m := paymentPattern.FindStringSubmatch(text); m != nil {
		fields["payment_method"] = strings.ToLower(m[1])
	}
	if len(lines) > 0 {
		fields["vendor_name"] = lines[0]
	}
	if items := extractLineItems(lines); len(items) > 0 {
		fields["line_items"] = items
	}
	return fields, nil
}

// FieldExtractionRate is the share of required fields present.
func (e *ReceiptExtractor) FieldExtractionRate(fields map[string]any) float64 {
	req := e.RequiredFields()
	if len(req) == 0 {
		return 1
	}
	return scoring.HitRate(fields, req)
}

func splitLines(text string) []string {
	var out []string
	for _, l := range strings.Split(text, "\n") {
		if c := CleanText(l); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func extractLineItems(lines []string) []any {
	var items []any
	for _, line := range lines {
		if len(line) < 5 || containsAny(strings.ToLower(line), summaryWords) {
			continue
		}
		m := lineItemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		total, ok := ParseAmount(m[3])
		if !ok {
			continue
		}
		desc := strings.TrimSpace(m[2])
		if len(desc) < 2 {
			continue
		}
		qty := m[1]
		if qty == "" {
			qty = "1"
		}
		items = append(items, map[string]any{
			"description": desc,
			"quantity":    qty,
			"line_total":  total,
		})
	}
	return items
}
