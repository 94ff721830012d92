package csvexport_test

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"digidoc/internal/csvexport"
	"digidoc/internal/domain"
)

func readAll(t *testing.T, buf *bytes.Buffer) [][]string {
	t.Helper()
	rows, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteHeader(t *testing.T) {
	var buf bytes.Buffer
	w := csvexport.NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	w.Flush()
	require.NoError(t, w.Error())

	rows := readAll(t, &buf)
	require.Len(t, rows, 1)
	assert.Len(t, rows[0], 12)
	assert.Equal(t, "Template ID", rows[0][0])
	assert.Equal(t, "Created At", rows[0][11])
}

func TestWriteTemplates(t *testing.T) {
	updated := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	synced := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	list := []domain.CachedTemplate{
		{
			TemplateID:    "tpl-1",
			DocumentType:  "invoice",
			Vendor:        "Mead Clark",
			FormatName:    "format1",
			FieldMappings: domain.JSONMap{"total": "total_amount", "date": "invoice_date"},
			StructuralFingerprint: &domain.Fingerprint{
				ZoneCount:             3,
				TotalContentAreaRatio: 0.41237,
			},
			LastUpdated:  &updated,
			LastSyncedAt: synced,
			CreatedAt:    synced,
		},
		{TemplateID: "tpl-2", FormatName: "=HYPERLINK(\"x\")"},
	}

	var buf bytes.Buffer
	w := csvexport.NewWriter(&buf)
	require.NoError(t, w.WriteTemplates(list))
	w.Flush()
	require.NoError(t, w.Error())

	rows := readAll(t, &buf)
	require.Len(t, rows, 2)

	assert.Equal(t, []string{
		"tpl-1", "invoice", "Mead Clark", "format1", "Mead Clark format1",
		"Yes", "3", "0.4124", "2",
		"2024-03-01T09:30:00Z", "2024-03-02T10:00:00Z", "2024-03-02T10:00:00Z",
	}, rows[0])

	assert.Equal(t, "No", rows[1][5])
	assert.Empty(t, rows[1][6])
	assert.Equal(t, "0", rows[1][8])
	assert.Equal(t, `'=HYPERLINK("x")`, rows[1][3])
	assert.Empty(t, rows[1][10])
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"acme", "acme"},
		{"Acme Corp / EU", "Acme_Corp_EU"},
		{"__x__", "x"},
		{string(bytes.Repeat([]byte("a"), 120)), string(bytes.Repeat([]byte("a"), 100))},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, csvexport.SanitizeFilename(tt.in))
	}
}

func TestBuildFilename(t *testing.T) {
	got := csvexport.BuildFilename("tenant a", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "tenant_a_templates_2024-03-15.csv", got)
}
