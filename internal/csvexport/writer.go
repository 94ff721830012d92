// Package csvexport writes the template catalog as CSV.
package csvexport

import (
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"digidoc/internal/domain"
)

// UTF-8 BOM bytes for Excel compatibility on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

var columns = []string{
	"Template ID",
	"Document Type",
	"Vendor",
	"Format Name",
	"Display Name",
	"Has Fingerprint",
	"Zone Count",
	"Content Area Ratio",
	"Field Mapping Count",
	"Last Updated",
	"Last Synced At",
	"Created At",
}

// Writer wraps csv.Writer for exporting templates as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteTemplates converts a batch of templates to CSV rows and writes them.
func (w *Writer) WriteTemplates(list []domain.CachedTemplate) error {
	for i := range list {
		if err := w.csv.Write(templateToRow(&list[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}

// templateToRow converts one template to a row. Fingerprint columns stay
// empty for templates that have not been learned yet.
func templateToRow(t *domain.CachedTemplate) []string {
	row := make([]string, len(columns))
	row[0] = sanitizeCell(t.TemplateID)
	row[1] = sanitizeCell(t.DocumentType)
	row[2] = sanitizeCell(t.Vendor)
	row[3] = sanitizeCell(t.FormatName)
	row[4] = sanitizeCell(t.DisplayName())
	row[5] = formatBool(t.StructuralFingerprint != nil)
	if fp := t.StructuralFingerprint; fp != nil {
		row[6] = strconv.Itoa(fp.ZoneCount)
		row[7] = strconv.FormatFloat(fp.TotalContentAreaRatio, 'f', 4, 64)
	}
	row[8] = strconv.Itoa(len(t.FieldMappings))
	row[9] = formatTime(t.LastUpdated)
	row[10] = formatTime(&t.LastSyncedAt)
	row[11] = formatTime(&t.CreatedAt)
	return row
}

// sanitizeCell keeps spreadsheet applications from evaluating tenant
// supplied text as a formula.
func sanitizeCell(s string) string {
	if s != "" && strings.ContainsRune("=+-@", rune(s[0])) {
		return "'" + s
	}
	return s
}

func formatBool(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename cleans a name for use in Content-Disposition.
// Replaces non-alphanumeric chars (except - _) with _, collapses consecutive
// underscores, and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns a sanitized filename for Content-Disposition header.
// Format: {sanitized_tenant}_templates_{YYYY-MM-DD}.csv
func BuildFilename(tenantID string, now time.Time) string {
	return fmt.Sprintf("%s_templates_%s.csv", SanitizeFilename(tenantID), now.Format("2006-01-02"))
}
