// Package extractor holds the format extractors that turn OCR text into
// structured fields.
package extractor

import (
	"digidoc/internal/port"
)

// Key identifies a format extractor.
type Key struct {
	Vendor   string
	FormatID string
}

// Registry maps (vendor, format id) to FormatExtractor implementations.
// Registration happens at startup; lookups are read-only afterwards.
type Registry struct {
	extractors map[Key]port.FormatExtractor
	order      []Key
}

// NewRegistry creates a Registry holding the given extractors.
func NewRegistry(extractors ...port.FormatExtractor) *Registry {
	r := &Registry{extractors: make(map[Key]port.FormatExtractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor, replacing any previous one with the same key.
func (r *Registry) Register(e port.FormatExtractor) {
	k := Key{Vendor: e.Vendor(), FormatID: e.FormatID()}
	if _, ok := r.extractors[k]; !ok {
		r.order = append(r.order, k)
	}
	r.extractors[k] = e
}

// Get returns the extractor for a key, or nil if not found.
func (r *Registry) Get(vendor, formatID string) port.FormatExtractor {
	return r.extractors[Key{Vendor: vendor, FormatID: formatID}]
}

// All returns the extractors in registration order.
func (r *Registry) All() []port.FormatExtractor {
	out := make([]port.FormatExtractor, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.extractors[k])
	}
	return out
}

// Detect returns the extractor whose format detection is most confident for
// text. Ties keep the earliest registered. ok is false when no extractor
// recognizes the text.
func (r *Registry) Detect(text string) (e port.FormatExtractor, confidence float64, ok bool) {
	for _, k := range r.order {
		cand := r.extractors[k]
		match, conf := cand.DetectFormat(text)
		if !match {
			continue
		}
		if !ok || conf > confidence {
			e, confidence, ok = cand, conf, true
		}
	}
	return e, confidence, ok
}
