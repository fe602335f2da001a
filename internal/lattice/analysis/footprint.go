package analysis

import (
	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
)

// extent is a unit's rotated, scaled footprint in lattice units.
type extent struct {
	w, d, h float64
	studs   int
}

func unitExtent(op string, cat *catalogs.Catalogs, u lattice.Unit) (extent, error) {
	a, ok := cat.Archetype(u.Archetype)
	if !ok {
		return extent{}, fault.Validationf(op, "unknown archetype %q", u.Archetype)
	}
	s := u.EffectiveScale()
	w, d := lattice.Footprint(float64(a.Width)*s, float64(a.Depth)*s, u.QuarterTurns())
	return extent{w: w, d: d, h: a.Height * s, studs: a.Studs}, nil
}
