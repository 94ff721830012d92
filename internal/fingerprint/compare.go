package fingerprint

import (
	"math"

	"digidoc/internal/domain"
)

// Blend weights of the similarity components.
const (
	weightZoneCount = 0.3
	weightArea      = 0.2
	weightZoneType  = 0.5
)

// Compare returns the similarity of two fingerprints in [0,1]. Two empty
// fingerprints are identical; an empty and a non-empty one share nothing.
func Compare(a, b domain.Fingerprint) float64 {
	aEmpty, bEmpty := a.IsEmpty(), b.IsEmpty()
	switch {
	case aEmpty && bEmpty:
		return 1.0
	case aEmpty || bEmpty:
		return 0.0
	}

	ca, cb := float64(len(a.Zones)), float64(len(b.Zones))
	countSim := 1 - math.Abs(ca-cb)/math.Max(ca, cb)
	areaSim := 1 - math.Min(math.Abs(a.TotalContentAreaRatio-b.TotalContentAreaRatio), 1)

	var sum float64
	compared := 0
	for _, t := range domain.ZoneTypes {
		za, okA := a.FirstOfType(t)
		zb, okB := b.FirstOfType(t)
		if !okA || !okB {
			continue
		}
		sum += math.Exp(-2 * zoneDistance(za, zb))
		compared++
	}
	typeSim := 0.0
	if compared > 0 {
		typeSim = sum / float64(compared)
	}

	score := weightZoneCount*countSim + weightArea*areaSim + weightZoneType*typeSim
	return math.Max(0, math.Min(1, score))
}

func zoneDistance(a, b domain.Zone) float64 {
	va, vb := a.Vector(), b.Vector()
	var sq float64
	for i := range va {
		d := va[i] - vb[i]
		sq += d * d
	}
	return math.Sqrt(sq)
}
