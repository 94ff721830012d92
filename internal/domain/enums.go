package domain

// ZoneType classifies a rectangular content region of a page.
type ZoneType string

const (
	ZoneHeader ZoneType = "header"
	ZoneTable  ZoneType = "table"
	ZoneFooter ZoneType = "footer"
	ZoneLogo   ZoneType = "logo"
	ZoneOther  ZoneType = "other"
)

// ZoneTypes lists every zone type in a fixed order.
var ZoneTypes = []ZoneType{ZoneHeader, ZoneTable, ZoneFooter, ZoneLogo, ZoneOther}

// JobStatus is the lifecycle state of a queued job as reported by the queue backend.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusStarted   JobStatus = "started"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusDeferred  JobStatus = "deferred"
	JobStatusScheduled JobStatus = "scheduled"
)

// IsTerminal reports whether no further transitions can happen.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ValidJobStatuses is the fixed status enumeration.
var ValidJobStatuses = map[JobStatus]bool{
	JobStatusQueued:    true,
	JobStatusStarted:   true,
	JobStatusCompleted: true,
	JobStatusFailed:    true,
	JobStatusDeferred:  true,
	JobStatusScheduled: true,
}

// ProcessingState is a step of the per-document state machine.
type ProcessingState string

const (
	StateReceived     ProcessingState = "received"
	StatePreprocessed ProcessingState = "preprocessed"
	StateMatched      ProcessingState = "matched"
	StateExtracted    ProcessingState = "extracted"
	StateSkipped      ProcessingState = "skipped"
	StateCompleted    ProcessingState = "completed"
	StateReview       ProcessingState = "review"
	StateFailed       ProcessingState = "failed"
)

// ConfidenceLevel buckets an overall confidence score.
type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

// MatchReason explains how a match result was reached.
type MatchReason string

const (
	MatchReasonMatched         MatchReason = "matched"
	MatchReasonNoTemplates     MatchReason = "no_templates"
	MatchReasonBelowMinimum    MatchReason = "below_minimum"
	MatchReasonTemplateMissing MatchReason = "template_missing"
)

// ReviewType tells a reviewer what decision a document in review needs.
type ReviewType string

const (
	ReviewTemplateSelection     ReviewType = "template_selection"
	ReviewDocumentTypeSelection ReviewType = "document_type_selection"
	ReviewAccuracy              ReviewType = "accuracy_review"
)

// SyncStatus is the outcome of the last template sync for a tenant.
type SyncStatus string

const (
	SyncStatusSuccess SyncStatus = "success"
	SyncStatusFailed  SyncStatus = "failed"
)

// AllowedImageExtensions maps accepted upload extensions (without dot) to MIME types.
var AllowedImageExtensions = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
	"bmp":  "image/bmp",
	"webp": "image/webp",
}
