package domain

import "time"

// CachedTemplate is a learned (fingerprint, field-mapping) pair for a tenant.
type CachedTemplate struct {
	TemplateID            string       `db:"template_id" json:"template_id"`
	TenantID              string       `db:"tenant_id" json:"tenant_id"`
	DocumentType          string       `db:"document_type" json:"document_type"`
	Vendor                string       `db:"vendor" json:"vendor"`
	FormatName            string       `db:"format_name" json:"format_name"`
	TemplateData          JSONMap      `db:"template_data" json:"template_data"`
	FieldMappings         JSONMap      `db:"field_mappings" json:"field_mappings"`
	StructuralFingerprint *Fingerprint `db:"structural_fingerprint" json:"structural_fingerprint,omitempty"`
	LastUpdated           *time.Time   `db:"last_updated" json:"last_updated,omitempty"`
	LastSyncedAt          time.Time    `db:"last_synced_at" json:"last_synced_at"`
	CreatedAt             time.Time    `db:"created_at" json:"created_at"`
}

// DisplayName returns the most descriptive name available for the template.
func (t *CachedTemplate) DisplayName() string {
	switch {
	case t.Vendor != "" && t.FormatName != "":
		return t.Vendor + " " + t.FormatName
	case t.FormatName != "":
		return t.FormatName
	case t.Vendor != "":
		return t.Vendor
	default:
		return t.TemplateID
	}
}

// TemplateFilter narrows a template listing. Empty fields do not filter.
type TemplateFilter struct {
	TenantID     string
	DocumentType string
	Vendor       string
	FormatName   string
}

// TenantRegistration is an external system that owns templates and submits documents.
type TenantRegistration struct {
	TenantID    string    `db:"tenant_id" json:"tenant_id"`
	Name        string    `db:"name" json:"name"`
	APIEndpoint string    `db:"api_endpoint" json:"api_endpoint"`
	APIKey      string    `db:"api_key" json:"-"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// TemplateSyncMetadata records the outcome of the latest template pull for a tenant.
type TemplateSyncMetadata struct {
	TenantID        string     `db:"tenant_id" json:"tenant_id"`
	LastSyncAt      *time.Time `db:"last_sync_at" json:"last_sync_at,omitempty"`
	TemplatesSynced int        `db:"templates_synced" json:"templates_synced"`
	Status          SyncStatus `db:"status" json:"status"`
	Error           string     `db:"error" json:"error,omitempty"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// MatchResult is the outcome of comparing a document against a tenant's templates.
type MatchResult struct {
	MatchedTemplateID *string     `json:"matched_template_id"`
	MatchScore        float64     `json:"match_score"`
	TemplateName      *string     `json:"template_name"`
	Fingerprint       Fingerprint `json:"fingerprint"`
	Reason            MatchReason `json:"reason"`
	CandidatesScored  int         `json:"candidates_scored"`
	// Candidates holds the best scoring templates, highest first, whether or
	// not any of them cleared the minimum.
	Candidates []TemplateCandidate `json:"candidates"`
	// Template is the matched template when one was selected.
	Template *CachedTemplate `json:"-"`
}

// TemplateCandidate is one scored template of a match run.
type TemplateCandidate struct {
	TemplateID   string  `json:"template_id"`
	TemplateName string  `json:"template_name"`
	DocumentType string  `json:"document_type"`
	Score        float64 `json:"score"`
}

// ConfidenceComponents are the individual factors of a confidence score.
type ConfidenceComponents struct {
	OCRQuality      float64 `json:"ocr_quality"`
	FieldExtraction float64 `json:"field_extraction"`
	PatternMatching float64 `json:"pattern_matching"`
	DataValidation  float64 `json:"data_validation"`
}

// ConfidenceScore is the weighted blend of the components.
type ConfidenceScore struct {
	Overall    float64              `json:"overall"`
	Components ConfidenceComponents `json:"components"`
	Level      ConfidenceLevel      `json:"level"`
	Issues     []string             `json:"issues,omitempty"`
}

// OCRWord is one recognized token with its layout box.
type OCRWord struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Left       int     `json:"left"`
	Top        int     `json:"top"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Block      int     `json:"block"`
	Line       int     `json:"line"`
}

// OCRResult is the output of an OCR engine run. Confidences are on a 0-100
// scale with -1 marking tokens the engine did not score.
type OCRResult struct {
	Text        string    `json:"text"`
	Confidences []float64 `json:"confidences"`
	Words       []OCRWord `json:"words"`
}
