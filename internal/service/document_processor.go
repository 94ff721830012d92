// Package service runs documents through the processing pipeline and exposes
// the pipeline as queue tasks.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"digidoc/internal/config"
	"digidoc/internal/domain"
	"digidoc/internal/extractor"
	"digidoc/internal/fingerprint"
	"digidoc/internal/imaging"
	"digidoc/internal/logging"
	"digidoc/internal/port"
	"digidoc/internal/scoring"
	"digidoc/internal/templates"
)

// ProcessRequest identifies one document and where to read it from. Exactly
// one of SourceBytes, SourcePath or SourceKey is used, in that order.
type ProcessRequest struct {
	DocumentID   string
	TenantID     string
	DocumentType string
	SourcePath   string
	// SourceKey is an object key in the configured S3 bucket.
	SourceKey   string
	SourceBytes []byte
	// Extension overrides the extension taken from the source name.
	Extension string
}

// DocumentProcessor owns the per-document state machine:
// received → preprocessed → matched → (extracted | skipped) → completed | review | failed.
type DocumentProcessor struct {
	cfgs         *config.Store
	preprocessor *imaging.Preprocessor
	cache        *templates.Cache
	extractors   *extractor.Registry
	ocr          port.OCREngine
	scorer       *scoring.Scorer
	artifacts    port.ArtifactStore
	objects      port.ObjectStore
	logger       *slog.Logger
	now          func() time.Time
}

// NewDocumentProcessor creates a DocumentProcessor. objects may be nil when
// documents are never read from S3.
func NewDocumentProcessor(
	cfgs *config.Store,
	preprocessor *imaging.Preprocessor,
	cache *templates.Cache,
	extractors *extractor.Registry,
	ocr port.OCREngine,
	scorer *scoring.Scorer,
	artifacts port.ArtifactStore,
	objects port.ObjectStore,
	logger *slog.Logger,
) *DocumentProcessor {
	return &DocumentProcessor{
		cfgs:         cfgs,
		preprocessor: preprocessor,
		cache:        cache,
		extractors:   extractors,
		ocr:          ocr,
		scorer:       scorer,
		artifacts:    artifacts,
		objects:      objects,
		logger:       logging.OrDiscard(logger),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// templateSelectionScore is the best candidate score at which a reviewer is
// asked to pick among candidates rather than to classify the document.
const templateSelectionScore = 0.80

// matchMetadata is the content of match_metadata.json.
type matchMetadata struct {
	DocumentID        string                     `json:"document_id"`
	TenantID          string                     `json:"tenant_id"`
	MatchedTemplateID *string                    `json:"matched_template_id"`
	TemplateName      *string                    `json:"template_name"`
	MatchScore        float64                    `json:"match_score"`
	RoutingConfidence float64                    `json:"routing_confidence"`
	Reason            domain.MatchReason         `json:"reason"`
	CandidatesScored  int                        `json:"candidates_scored"`
	Candidates        []domain.TemplateCandidate `json:"candidates"`
	Fingerprint       domain.Fingerprint         `json:"fingerprint"`
	CreatedAt         time.Time                  `json:"created_at"`
}

// Process runs the full pipeline. It never returns an error: failures,
// including panics, produce a result in the failed state.
func (p *DocumentProcessor) Process(ctx context.Context, req ProcessRequest) (res *domain.DocumentResult) {
	cfg := p.cfgs.Get()
	res = p.newResult(req)
	log := p.logger.With("document_id", req.DocumentID, "tenant_id", req.TenantID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("service.DocumentProcessor.Process: panic", "panic", r, "stack", string(debug.Stack()))
			p.markFailed(res, fmt.Errorf("panic: %v", r))
		}
		res.ProcessedAt = p.now()
	}()

	if err := p.run(ctx, cfg, req, res, log); err != nil {
		log.Error("service.DocumentProcessor.Process: failed", "state", res.State, "error", err)
		p.markFailed(res, err)
		return res
	}
	log.Info("service.DocumentProcessor.Process: done",
		"state", res.State,
		"confidence", res.Confidence,
		"match_reason", res.MatchReason)
	return res
}

// PreprocessDocument persists the original and preprocessing artifacts
// without matching or extraction.
func (p *DocumentProcessor) PreprocessDocument(ctx context.Context, req ProcessRequest) (res *domain.DocumentResult) {
	cfg := p.cfgs.Get()
	res = p.newResult(req)
	log := p.logger.With("document_id", req.DocumentID, "tenant_id", req.TenantID)

	defer func() {
		if r := recover(); r != nil {
			log.Error("service.DocumentProcessor.PreprocessDocument: panic", "panic", r, "stack", string(debug.Stack()))
			p.markFailed(res, fmt.Errorf("panic: %v", r))
		}
		res.ProcessedAt = p.now()
	}()

	if _, err := p.preprocess(ctx, cfg, req, res); err != nil {
		log.Error("service.DocumentProcessor.PreprocessDocument: failed", "error", err)
		p.markFailed(res, err)
		return res
	}
	res.Advance(domain.StateCompleted)
	return res
}

func (p *DocumentProcessor) newResult(req ProcessRequest) *domain.DocumentResult {
	res := &domain.DocumentResult{
		DocumentID:   req.DocumentID,
		TenantID:     req.TenantID,
		DocumentType: req.DocumentType,
		Transitions:  []domain.ProcessingState{},
	}
	res.Advance(domain.StateReceived)
	return res
}

func (p *DocumentProcessor) markFailed(res *domain.DocumentResult, err error) {
	res.Error = err.Error()
	res.Advance(domain.StateFailed)
}

func (p *DocumentProcessor) run(ctx context.Context, cfg *config.Config, req ProcessRequest, res *domain.DocumentResult, log *slog.Logger) error {
	pre, err := p.preprocess(ctx, cfg, req, res)
	if err != nil {
		return err
	}

	// Fingerprinting and OCR work on the bounded image.
	work := imaging.ResizeIfNeeded(pre.Image, cfg.Preprocessing.MaxDimension)

	match, confidence, err := p.match(ctx, cfg, req, res, work)
	if err != nil {
		return err
	}
	res.Advance(domain.StateMatched)
	res.Confidence = confidence

	switch {
	case match.Reason == domain.MatchReasonNoTemplates:
		p.review(res, domain.ReviewDocumentTypeSelection, "no cached templates for tenant")
		return nil
	case confidence < cfg.Thresholds.AutoMatch:
		p.review(res, selectionReview(match), fmt.Sprintf("match confidence %.3f below auto-match threshold %.2f",
			confidence, cfg.Thresholds.AutoMatch))
		return nil
	}

	log.Debug("service.DocumentProcessor.Process: auto-match gate passed",
		"confidence", confidence, "threshold", cfg.Thresholds.AutoMatch)
	return p.extract(ctx, res, work, work != pre.Image)
}

// preprocess covers steps up to the preprocessed state and writes the
// original, preprocessed and comparison artifacts.
func (p *DocumentProcessor) preprocess(ctx context.Context, cfg *config.Config, req ProcessRequest, res *domain.DocumentResult) (*imaging.Result, error) {
	if req.TenantID == "" || req.DocumentID == "" {
		return nil, fmt.Errorf("%w: tenant_id and document_id are required", domain.ErrInvalidRequest)
	}
	raw, ext, err := p.readSource(ctx, req)
	if err != nil {
		return nil, err
	}

	if err := p.artifacts.Reset(ctx, req.TenantID, req.DocumentID); err != nil {
		return nil, err
	}
	res.Artifacts.Original, err = p.artifacts.Write(ctx, req.TenantID, req.DocumentID,
		domain.ArtifactOriginalPrefix+"."+ext, raw)
	if err != nil {
		return nil, err
	}

	pre, err := p.preprocessor.Preprocess(ctx, raw, cfg.Preprocessing)
	if err != nil {
		return nil, err
	}
	if res.Artifacts.Preprocessed, err = p.writePNG(ctx, req, domain.ArtifactPreprocessed, pre.Image); err != nil {
		return nil, err
	}
	if cfg.Preprocessing.SaveComparison {
		cmp := imaging.ComparisonImage(pre.Original, pre.Image)
		if res.Artifacts.Comparison, err = p.writePNG(ctx, req, domain.ArtifactComparison, cmp); err != nil {
			return nil, err
		}
	}
	res.Advance(domain.StatePreprocessed)
	return pre, nil
}

// match compares the document against the tenant's templates, records the
// outcome and writes the visualization and metadata artifacts. The returned
// confidence is the match score, or the configured fallback when nothing
// matched.
func (p *DocumentProcessor) match(ctx context.Context, cfg *config.Config, req ProcessRequest, res *domain.DocumentResult, img *image.Gray) (*domain.MatchResult, float64, error) {
	matcher := templates.NewMatcher(p.cache, fingerprint.NewEngine(cfg.Fingerprint), cfg.Thresholds.MinMatch, p.logger)
	m, err := matcher.Match(ctx, req.TenantID, req.DocumentType, img)
	if err != nil {
		return nil, 0, err
	}

	if m.Reason == domain.MatchReasonMatched {
		if _, err := matcher.Resolve(ctx, req.TenantID, m); err != nil {
			if !errors.Is(err, domain.ErrTemplateNotFound) {
				return nil, 0, err
			}
			m.MatchedTemplateID, m.TemplateName, m.Template = nil, nil, nil
			m.Reason = domain.MatchReasonTemplateMissing
		}
	}

	confidence := cfg.Thresholds.FallbackConfidence
	if m.Reason == domain.MatchReasonMatched {
		confidence = m.MatchScore
	}
	res.MatchedTemplateID = m.MatchedTemplateID
	res.TemplateName = m.TemplateName
	res.MatchScore = m.MatchScore
	res.MatchReason = m.Reason
	res.TemplateCandidates = m.Candidates

	name := "none"
	if m.TemplateName != nil {
		name = *m.TemplateName
	}
	caption := []string{
		"Template: " + name,
		fmt.Sprintf("Match Score: %.3f", m.MatchScore),
		fmt.Sprintf("Zones: %d", m.Fingerprint.ZoneCount),
	}
	vis := fingerprint.Visualize(img, m.Fingerprint, caption)
	if res.Artifacts.MatchVisualization, err = p.writePNG(ctx, req, domain.ArtifactMatchVisualization, vis); err != nil {
		return nil, 0, err
	}

	meta, err := json.MarshalIndent(matchMetadata{
		DocumentID:        req.DocumentID,
		TenantID:          req.TenantID,
		MatchedTemplateID: m.MatchedTemplateID,
		TemplateName:      m.TemplateName,
		MatchScore:        m.MatchScore,
		RoutingConfidence: confidence,
		Reason:            m.Reason,
		CandidatesScored:  m.CandidatesScored,
		Candidates:        m.Candidates,
		Fingerprint:       m.Fingerprint,
		CreatedAt:         p.now(),
	}, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("service.DocumentProcessor.match: encoding metadata: %w", err)
	}
	res.Artifacts.MatchMetadata, err = p.artifacts.Write(ctx, req.TenantID, req.DocumentID, domain.ArtifactMatchMetadata, meta)
	if err != nil {
		return nil, 0, err
	}
	return m, confidence, nil
}

// extract runs OCR and the format extractors, then scores the result.
func (p *DocumentProcessor) extract(ctx context.Context, res *domain.DocumentResult, img *image.Gray, resized bool) error {
	ocrPath, cleanup, err := p.ocrInput(res, img, resized)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := p.ocr.ProcessImage(ctx, ocrPath)
	if err != nil {
		return err
	}

	ext, detected, ok := p.extractors.Detect(text.Text)
	if !ok {
		res.ExtractedFields = map[string]any{}
		p.review(res, domain.ReviewDocumentTypeSelection, "no format extractor recognized the document")
		return nil
	}

	fields, err := ext.ExtractFields(text.Text)
	if err != nil {
		res.ExtractedFields = map[string]any{}
		res.Advance(domain.StateExtracted)
		res.ReviewReason = fmt.Sprintf("field extraction failed: %v", err)
		res.ReviewType = domain.ReviewAccuracy
		res.Advance(domain.StateReview)
		return nil
	}

	rate := ext.FieldExtractionRate(fields)
	score := p.scorer.Calculate(scoring.MetricsFromOCR(text), fields, scoring.FormatSpec{
		RequiredFields:      ext.RequiredFields(),
		OptionalFields:      ext.OptionalFields(),
		DetectionConfidence: &detected,
		RequiredRate:        &rate,
	})
	res.ExtractedFields = fields
	res.Confidence = score.Overall
	res.ConfidenceLevel = score.Level
	res.ConfidenceComponents = &score.Components
	res.ExtractionMetadata = &domain.ExtractionMetadata{
		Vendor:          ext.Vendor(),
		FormatDetected:  ext.FormatID(),
		Confidence:      score.Overall,
		ConfidenceLevel: score.Level,
		OCRTextLength:   len(text.Text),
	}
	res.Advance(domain.StateExtracted)
	res.Advance(domain.StateCompleted)
	return nil
}

func (p *DocumentProcessor) review(res *domain.DocumentResult, kind domain.ReviewType, reason string) {
	res.ReviewReason = reason
	res.ReviewType = kind
	res.Advance(domain.StateSkipped)
	res.Advance(domain.StateReview)
}

// ocrInput returns a file holding img for the OCR engine. The preprocessed
// artifact is reused when img was not resized.
func (p *DocumentProcessor) ocrInput(res *domain.DocumentResult, img *image.Gray, resized bool) (string, func(), error) {
	if !resized && res.Artifacts.Preprocessed != "" {
		return res.Artifacts.Preprocessed, func() {}, nil
	}
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", nil, fmt.Errorf("service.DocumentProcessor.ocrInput: %w", err)
	}
	f, err := os.CreateTemp("", "digidoc-ocr-*.png")
	if err != nil {
		return "", nil, fmt.Errorf("service.DocumentProcessor.ocrInput: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("service.DocumentProcessor.ocrInput: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("service.DocumentProcessor.ocrInput: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func (p *DocumentProcessor) writePNG(ctx context.Context, req ProcessRequest, name string, img image.Image) (string, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("service.DocumentProcessor.writePNG: %s: %w", name, err)
	}
	return p.artifacts.Write(ctx, req.TenantID, req.DocumentID, name, data)
}

// readSource returns the document bytes and their lower-case extension.
func (p *DocumentProcessor) readSource(ctx context.Context, req ProcessRequest) ([]byte, string, error) {
	var (
		raw  []byte
		name string
		err  error
	)
	switch {
	case len(req.SourceBytes) > 0:
		raw = req.SourceBytes
	case req.SourcePath != "":
		name = req.SourcePath
		raw, err = os.ReadFile(req.SourcePath)
		if err != nil {
			return nil, "", fmt.Errorf("service.DocumentProcessor.readSource: %w", err)
		}
	case req.SourceKey != "":
		if p.objects == nil {
			return nil, "", fmt.Errorf("%w: object storage is not configured", domain.ErrInvalidRequest)
		}
		name = req.SourceKey
		raw, err = p.objects.Get(ctx, req.SourceKey)
		if err != nil {
			return nil, "", fmt.Errorf("service.DocumentProcessor.readSource: %w", err)
		}
	default:
		return nil, "", fmt.Errorf("%w: no document source", domain.ErrInvalidRequest)
	}

	ext := req.Extension
	if ext == "" {
		ext = filepath.Ext(name)
	}
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if _, ok := domain.AllowedImageExtensions[ext]; !ok {
		return nil, "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, ext)
	}
	return raw, ext, nil
}

// selectionReview picks the review a below-gate document needs: choosing
// among close candidates, or classifying a document nothing resembles.
func selectionReview(m *domain.MatchResult) domain.ReviewType {
	if len(m.Candidates) > 0 && m.Candidates[0].Score >= templateSelectionScore {
		return domain.ReviewTemplateSelection
	}
	return domain.ReviewDocumentTypeSelection
}
