package templates

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sort"

	"digidoc/internal/domain"
	"digidoc/internal/fingerprint"
	"digidoc/internal/logging"
)

// MaxCandidates bounds the candidate list of a match result.
const MaxCandidates = 5

// Matcher finds the cached template whose layout best resembles a document.
type Matcher struct {
	cache    *Cache
	engine   *fingerprint.Engine
	minMatch float64
	logger   *slog.Logger
}

// NewMatcher creates a Matcher. Only scores strictly above minMatch count as
// a match.
func NewMatcher(cache *Cache, engine *fingerprint.Engine, minMatch float64, logger *slog.Logger) *Matcher {
	return &Matcher{cache: cache, engine: engine, minMatch: minMatch, logger: logging.OrDiscard(logger)}
}

// Match fingerprints img and compares it against the tenant's templates that
// carry a fingerprint, optionally narrowed to documentType. Ties keep the
// earliest listed template. The returned result is never nil on success.
func (m *Matcher) Match(ctx context.Context, tenantID, documentType string, img image.Image) (*domain.MatchResult, error) {
	fp := m.engine.Compute(img)
	res := &domain.MatchResult{Fingerprint: fp, Reason: domain.MatchReasonNoTemplates}

	list, err := m.cache.ListByContext(ctx, domain.TemplateFilter{TenantID: tenantID, DocumentType: documentType})
	if err != nil {
		return nil, fmt.Errorf("templates.Matcher.Match: %w", err)
	}

	var (
		best      *domain.CachedTemplate
		bestScore float64
	)
	for i := range list {
		t := &list[i]
		if t.StructuralFingerprint == nil {
			continue
		}
		res.CandidatesScored++
		score := fingerprint.Compare(fp, *t.StructuralFingerprint)
		res.Candidates = append(res.Candidates, domain.TemplateCandidate{
			TemplateID:   t.TemplateID,
			TemplateName: t.DisplayName(),
			DocumentType: t.DocumentType,
			Score:        score,
		})
		if best == nil || score > bestScore {
			best, bestScore = t, score
		}
	}
	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Score > res.Candidates[j].Score
	})
	if len(res.Candidates) > MaxCandidates {
		res.Candidates = res.Candidates[:MaxCandidates]
	}

	switch {
	case res.CandidatesScored == 0:
		// no templates with a fingerprint
	case bestScore <= m.minMatch:
		// best observed similarity is still reported
		res.MatchScore = bestScore
		res.Reason = domain.MatchReasonBelowMinimum
	default:
		id, name := best.TemplateID, best.DisplayName()
		res.MatchedTemplateID = &id
		res.TemplateName = &name
		res.MatchScore = bestScore
		res.Reason = domain.MatchReasonMatched
		res.Template = best
	}

	m.logger.Debug("templates.Matcher.Match: done",
		"tenant_id", tenantID,
		"zones", fp.ZoneCount,
		"candidates", res.CandidatesScored,
		"reason", res.Reason,
		"score", res.MatchScore)
	return res, nil
}

// Resolve reloads the matched template by id so a template deleted after the
// comparison is reported as domain.ErrTemplateNotFound.
func (m *Matcher) Resolve(ctx context.Context, tenantID string, res *domain.MatchResult) (*domain.CachedTemplate, error) {
	if res == nil || res.MatchedTemplateID == nil {
		return nil, domain.ErrTemplateNotFound
	}
	return m.cache.GetByID(ctx, tenantID, *res.MatchedTemplateID)
}
