// Package transform derives new unit lists from existing ones. Inputs are
// never modified.
package transform

import (
	"math"
	"math/rand"
	"sort"
	"strings"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
)

var allowedScales = []float64{0.5, 1, 2, 3}

func centroid(units []lattice.Unit) (cx, cy, cz float64) {
	for _, u := range units {
		cx += float64(u.X)
		cy += float64(u.Y)
		cz += float64(u.Z)
	}
	n := float64(len(units))
	return cx / n, cy / n, cz / n
}

func snap(v float64) int { return int(math.Round(v)) }

// Rotate turns the whole scene about its planar centroid by 90, 180 or 270
// degrees counter-clockwise. Each unit's own orientation turns with it.
func Rotate(units []lattice.Unit, angle int) ([]lattice.Unit, error) {
	if angle != 90 && angle != 180 && angle != 270 {
		return nil, fault.Validationf("rotate", "angle must be 90, 180, or 270; got %d", angle)
	}
	out := make([]lattice.Unit, len(units))
	if len(units) == 0 {
		return out, nil
	}
	cx, cy, _ := centroid(units)
	turns := angle / 90
	for i, u := range units {
		dx, dy := lattice.RotateXY(float64(u.X)-cx, float64(u.Y)-cy, turns)
		u.X, u.Y = snap(cx+dx), snap(cy+dy)
		u.Rotation = lattice.Turns(u.QuarterTurns() + turns)
		out[i] = u
	}
	return out, nil
}

// Scale spreads anchors away from the centroid by factor and multiplies each
// unit's geometry scale by the same factor.
func Scale(units []lattice.Unit, factor float64) ([]lattice.Unit, error) {
	ok := false
	for _, s := range allowedScales {
		if factor == s {
			ok = true
		}
	}
	if !ok {
		return nil, fault.Validationf("scale", "scale factor must be one of 0.5, 1, 2, 3; got %v", factor)
	}
	out := make([]lattice.Unit, len(units))
	if len(units) == 0 {
		return out, nil
	}
	cx, cy, cz := centroid(units)
	for i, u := range units {
		u.X = snap(cx + (float64(u.X)-cx)*factor)
		u.Y = snap(cy + (float64(u.Y)-cy)*factor)
		u.Z = snap(cz + (float64(u.Z)-cz)*factor)
		if factor != 1 {
			u.Scale = u.EffectiveScale() * factor
		}
		out[i] = u
	}
	return out, nil
}

// Mirror reflects units across the plane axis=center. Planar reflections
// account for the unit's footprint so the reflected part covers the mirror
// image of the original cells.
func Mirror(units []lattice.Unit, cat *catalogs.Catalogs, axis lattice.Axis, center int) ([]lattice.Unit, error) {
	if !lattice.CoordInRange(center) {
		return nil, fault.Validationf("mirror", "center must lie within ±%d; got %d", lattice.MaxCoord, center)
	}
	out := make([]lattice.Unit, len(units))
	for i, u := range units {
		switch axis {
		case lattice.AxisZ:
			u.Z = 2*center - u.Z - 1
		default:
			a, ok := cat.Archetype(u.Archetype)
			if !ok {
				return nil, fault.Validationf("mirror", "unknown archetype %q", u.Archetype)
			}
			s := u.EffectiveScale()
			w, d := lattice.Footprint(float64(a.Width)*s, float64(a.Depth)*s, u.QuarterTurns())
			if axis == lattice.AxisX {
				u.X = 2*center - u.X - snap(w)
			} else {
				u.Y = 2*center - u.Y - snap(d)
			}
		}
		out[i] = u
	}
	return out, nil
}

// Explode lifts each layer by its layer rank times gap, separating layers
// for an exploded view.
func Explode(units []lattice.Unit, gap float64) ([]lattice.Unit, error) {
	if gap < 0 || math.IsNaN(gap) || math.IsInf(gap, 0) {
		return nil, fault.Validationf("explode", "gap factor must be a finite value >= 0; got %v", gap)
	}
	layers := map[int]int{}
	for _, u := range units {
		layers[u.Z] = 0
	}
	zs := make([]int, 0, len(layers))
	for z := range layers {
		zs = append(zs, z)
	}
	sort.Ints(zs)
	for rank, z := range zs {
		layers[z] = rank
	}
	out := make([]lattice.Unit, len(units))
	for i, u := range units {
		z := math.Round(float64(u.Z) + float64(layers[u.Z])*gap)
		if z < -lattice.MaxCoord || z > lattice.MaxCoord {
			return nil, fault.Validationf("explode", "gap factor %v lifts layer %d outside ±%d", gap, u.Z, lattice.MaxCoord)
		}
		u.Z = int(z)
		out[i] = u
	}
	return out, nil
}

// Recolor replaces oldColor (case-insensitive) with newColor and returns the
// number of units changed.
func Recolor(units []lattice.Unit, oldColor, newColor string) ([]lattice.Unit, int, error) {
	oldColor, newColor = strings.TrimSpace(oldColor), strings.TrimSpace(newColor)
	if oldColor == "" || newColor == "" {
		return nil, 0, fault.Validationf("recolor", "both old_color and new_color are required")
	}
	out := make([]lattice.Unit, len(units))
	n := 0
	for i, u := range units {
		if strings.EqualFold(u.Color, oldColor) {
			u.Color = newColor
			n++
		}
		out[i] = u
	}
	return out, n, nil
}

// RandomizeColors assigns each unit a color drawn from palette using rng.
func RandomizeColors(units []lattice.Unit, palette []string, rng *rand.Rand) ([]lattice.Unit, error) {
	if len(palette) == 0 {
		return nil, fault.Validationf("randomize_colors", "empty palette")
	}
	out := make([]lattice.Unit, len(units))
	for i, u := range units {
		u.Color = palette[rng.Intn(len(palette))]
		out[i] = u
	}
	return out, nil
}
