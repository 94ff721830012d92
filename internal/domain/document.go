package domain

import "time"

// Artifact file names inside a document's queue directory.
const (
	ArtifactPreprocessed       = "preprocessed.png"
	ArtifactMatchVisualization = "match_visualization.png"
	ArtifactMatchMetadata      = "match_metadata.json"
	ArtifactComparison         = "preprocessing_comparison.png"
	ArtifactOriginalPrefix     = "original"
)

// DocumentArtifacts are the paths written while processing a document.
type DocumentArtifacts struct {
	Original           string `json:"original,omitempty"`
	Preprocessed       string `json:"preprocessed,omitempty"`
	Comparison         string `json:"comparison,omitempty"`
	MatchVisualization string `json:"match_visualization,omitempty"`
	MatchMetadata      string `json:"match_metadata,omitempty"`
}

// ExtractionMetadata describes how fields were extracted.
type ExtractionMetadata struct {
	Vendor          string          `json:"vendor"`
	FormatDetected  string          `json:"format_detected"`
	Confidence      float64         `json:"confidence"`
	ConfidenceLevel ConfidenceLevel `json:"confidence_level"`
	OCRTextLength   int             `json:"ocr_text_length"`
}

// DocumentResult is the terminal record of one orchestrator run.
type DocumentResult struct {
	DocumentID           string                `json:"document_id"`
	TenantID             string                `json:"tenant_id"`
	DocumentType         string                `json:"document_type"`
	State                ProcessingState       `json:"state"`
	Transitions          []ProcessingState     `json:"transitions"`
	Confidence           float64               `json:"confidence"`
	ConfidenceLevel      ConfidenceLevel       `json:"confidence_level,omitempty"`
	ConfidenceComponents *ConfidenceComponents `json:"confidence_components,omitempty"`
	MatchedTemplateID    *string               `json:"matched_template_id"`
	TemplateName         *string               `json:"template_name"`
	MatchScore           float64               `json:"match_score"`
	MatchReason          MatchReason           `json:"match_reason,omitempty"`
	Artifacts            DocumentArtifacts     `json:"artifacts"`
	ExtractedFields      map[string]any        `json:"extracted_fields,omitempty"`
	ExtractionMetadata   *ExtractionMetadata   `json:"extraction_metadata,omitempty"`
	ReviewReason         string                `json:"review_reason,omitempty"`
	ReviewType           ReviewType            `json:"review_type,omitempty"`
	TemplateCandidates   []TemplateCandidate   `json:"template_candidates,omitempty"`
	Error                string                `json:"error,omitempty"`
	ProcessedAt          time.Time             `json:"processed_at"`
}

// Advance records a state transition.
func (r *DocumentResult) Advance(s ProcessingState) {
	r.State = s
	r.Transitions = append(r.Transitions, s)
}
