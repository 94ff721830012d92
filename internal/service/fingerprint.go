package service

import (
	"context"
	"fmt"

	"digidoc/internal/domain"
	"digidoc/internal/fingerprint"
	"digidoc/internal/imaging"
)

// TemplateLearner attaches layout fingerprints to templates.
type TemplateLearner interface {
	Fingerprint(ctx context.Context, raw []byte) (domain.Fingerprint, error)
	LearnTemplate(ctx context.Context, tmpl *domain.CachedTemplate, raw []byte) error
}

// Fingerprint preprocesses a reference image and computes its structural
// fingerprint exactly as documents are fingerprinted before matching.
func (p *DocumentProcessor) Fingerprint(ctx context.Context, raw []byte) (domain.Fingerprint, error) {
	cfg := p.cfgs.Get()
	pre, err := p.preprocessor.Preprocess(ctx, raw, cfg.Preprocessing)
	if err != nil {
		return domain.Fingerprint{}, fmt.Errorf("service.DocumentProcessor.Fingerprint: %w", err)
	}
	work := imaging.ResizeIfNeeded(pre.Image, cfg.Preprocessing.MaxDimension)
	return fingerprint.NewEngine(cfg.Fingerprint).Compute(work), nil
}

// LearnTemplate fingerprints raw and stores it on tmpl in the cache.
func (p *DocumentProcessor) LearnTemplate(ctx context.Context, tmpl *domain.CachedTemplate, raw []byte) error {
	fp, err := p.Fingerprint(ctx, raw)
	if err != nil {
		return err
	}
	tmpl.StructuralFingerprint = &fp
	if err := p.cache.Upsert(ctx, tmpl); err != nil {
		return fmt.Errorf("service.DocumentProcessor.LearnTemplate: %w", err)
	}
	p.logger.Info("service.DocumentProcessor.LearnTemplate: learned",
		"tenant_id", tmpl.TenantID,
		"template_id", tmpl.TemplateID,
		"zones", fp.ZoneCount)
	return nil
}
