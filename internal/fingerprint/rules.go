package fingerprint

import (
	"math"

	"digidoc/internal/config"
	"digidoc/internal/domain"
)

// DefaultNoiseFloor is the minimum region area, as a fraction of the page,
// that counts as a zone.
const DefaultNoiseFloor = 0.001

// ZoneRules holds the position/shape thresholds used to classify zones. All
// values are ratios of the page dimensions.
type ZoneRules struct {
	HeaderMaxY       float64
	FooterMinY       float64
	BandMinWidth     float64
	BandMaxHeight    float64
	TableMinWidth    float64
	TableMinHeight   float64
	TableMinArea     float64
	LogoMaxY         float64
	LogoMaxArea      float64
	LogoMaxAspectGap float64
}

// DefaultZoneRules returns the standard classification thresholds.
func DefaultZoneRules() ZoneRules {
	return ZoneRules{
		HeaderMaxY:       0.2,
		FooterMinY:       0.7,
		BandMinWidth:     0.5,
		BandMaxHeight:    0.3,
		TableMinWidth:    0.6,
		TableMinHeight:   0.3,
		TableMinArea:     0.1,
		LogoMaxY:         0.3,
		LogoMaxArea:      0.05,
		LogoMaxAspectGap: 0.1,
	}
}

// RulesFromConfig builds ZoneRules from configuration.
func RulesFromConfig(cfg config.FingerprintConfig) ZoneRules {
	return ZoneRules{
		HeaderMaxY:       cfg.HeaderMaxY,
		FooterMinY:       cfg.FooterMinY,
		BandMinWidth:     cfg.BandMinWidth,
		BandMaxHeight:    cfg.BandMaxHeight,
		TableMinWidth:    cfg.TableMinWidth,
		TableMinHeight:   cfg.TableMinHeight,
		TableMinArea:     cfg.TableMinArea,
		LogoMaxY:         cfg.LogoMaxY,
		LogoMaxArea:      cfg.LogoMaxArea,
		LogoMaxAspectGap: cfg.LogoMaxAspectGap,
	}
}

// Classify assigns a zone type from the region's ratios. Rules are checked in
// the order header, footer, table, logo.
func (r ZoneRules) Classify(y, w, h, area float64) domain.ZoneType {
	switch {
	case y < r.HeaderMaxY && w > r.BandMinWidth && h < r.BandMaxHeight:
		return domain.ZoneHeader
	case y > r.FooterMinY && w > r.BandMinWidth && h < r.BandMaxHeight:
		return domain.ZoneFooter
	case y >= r.HeaderMaxY && y <= r.FooterMinY && w > r.TableMinWidth && h > r.TableMinHeight && area > r.TableMinArea:
		return domain.ZoneTable
	case y < r.LogoMaxY && area < r.LogoMaxArea && math.Abs(w-h) < r.LogoMaxAspectGap:
		return domain.ZoneLogo
	default:
		return domain.ZoneOther
	}
}
