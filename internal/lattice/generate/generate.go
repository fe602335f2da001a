// Package generate produces units in bulk. Every generator computes the
// resulting count first and refuses to allocate past the limit.
package generate

import (
	"github.com/google/uuid"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
)

const (
	DefaultArchetype = "1x1"
	DefaultRoofColor = "red"
)

type Bounds struct {
	Min lattice.Coord `json:"min"`
	Max lattice.Coord `json:"max"`
}

type Counts struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func effectiveLimit(limit int) int {
	if limit <= 0 {
		return lattice.MaxUnits
	}
	return limit
}

func checkLimit(op string, n int64, limit int) error {
	limit = effectiveLimit(limit)
	if n > int64(limit) {
		return fault.Validationf(op, "%d units exceeds the safety limit of %d", n, limit)
	}
	return nil
}

// gridCount multiplies per-axis extents, stopping as soon as the running
// product passes limit so the count never overflows.
func gridCount(op string, ext [3]int64, limit int) (int, error) {
	lim := int64(effectiveLimit(limit))
	n := int64(1)
	for _, e := range ext {
		if e > lim/n {
			return 0, fault.Validationf(op, "%dx%dx%d units exceeds the safety limit of %d", ext[0], ext[1], ext[2], lim)
		}
		n *= e
	}
	return int(n), nil
}

func newUnit(archetype, color string, c lattice.Coord) lattice.Unit {
	return lattice.Unit{
		ID:        uuid.NewString(),
		Archetype: archetype,
		X:         c[0],
		Y:         c[1],
		Z:         c[2],
		Color:     color,
	}
}

// Fill places one unit on every cell of the inclusive box b.
func Fill(b Bounds, archetype, color string, limit int) ([]lattice.Unit, error) {
	const op = "fill"
	if !b.Min.InRange() || !b.Max.InRange() {
		return nil, fault.Validationf(op, "bounds must lie within ±%d", lattice.MaxCoord)
	}
	var ext [3]int64
	for a := 0; a < 3; a++ {
		if b.Max[a] < b.Min[a] {
			return nil, fault.Validationf(op, "max must be >= min on every axis")
		}
		ext[a] = int64(b.Max[a]) - int64(b.Min[a]) + 1
	}
	n, err := gridCount(op, ext, limit)
	if err != nil {
		return nil, err
	}
	if archetype == "" {
		archetype = DefaultArchetype
	}
	out := make([]lattice.Unit, 0, n)
	for ix := 0; ix < int(ext[0]); ix++ {
		for iy := 0; iy < int(ext[1]); iy++ {
			for iz := 0; iz < int(ext[2]); iz++ {
				out = append(out, newUnit(archetype, color, b.Min.Add(lattice.Coord{ix, iy, iz})))
			}
		}
	}
	return out, nil
}

// Array repeats base on a counts grid with spacing cells between copies.
func Array(base lattice.Unit, c Counts, spacing int, limit int) ([]lattice.Unit, error) {
	const op = "array"
	if c.X < 1 || c.Y < 1 || c.Z < 1 {
		return nil, fault.Validationf(op, "counts must be at least 1")
	}
	n, err := gridCount(op, [3]int64{int64(c.X), int64(c.Y), int64(c.Z)}, limit)
	if err != nil {
		return nil, err
	}
	if spacing == 0 {
		spacing = 1
	}
	origin := base.Anchor()
	if !origin.InRange() || !lattice.CoordInRange(spacing) {
		return nil, fault.Validationf(op, "base anchor and spacing must lie within ±%d", lattice.MaxCoord)
	}
	// Counts are at most the limit here, so the far corner fits in an int64.
	far := [3]int64{
		int64(origin[0]) + int64(c.X-1)*int64(spacing),
		int64(origin[1]) + int64(c.Y-1)*int64(spacing),
		int64(origin[2]) + int64(c.Z-1)*int64(spacing),
	}
	for _, v := range far {
		if v < -lattice.MaxCoord || v > lattice.MaxCoord {
			return nil, fault.Validationf(op, "array reaches %d, outside ±%d", v, lattice.MaxCoord)
		}
	}
	out := make([]lattice.Unit, 0, n)
	for ix := 0; ix < c.X; ix++ {
		for iy := 0; iy < c.Y; iy++ {
			for iz := 0; iz < c.Z; iz++ {
				u := base.At(origin.Add(lattice.Coord{ix * spacing, iy * spacing, iz * spacing}))
				u.ID = uuid.NewString()
				out = append(out, u)
			}
		}
	}
	return out, nil
}

// Roof stacks a stepped gable over the top layer of units, narrowing by one
// cell on each X side per layer. It returns the roof units only; the limit
// applies to the input units plus the roof.
func Roof(units []lattice.Unit, archetype, color string, limit int) ([]lattice.Unit, int, error) {
	const op = "roof"
	if len(units) == 0 {
		return nil, 0, nil
	}
	if err := lattice.CheckUnits(op, units); err != nil {
		return nil, 0, err
	}
	topZ := units[0].Z
	for _, u := range units[1:] {
		topZ = max(topZ, u.Z)
	}
	var top []lattice.Unit
	for _, u := range units {
		if u.Z == topZ {
			top = append(top, u)
		}
	}
	lo, hi, _ := lattice.Bounds(top)
	width := int64(hi[0]-lo[0]) + 1
	rows := int64(hi[1]-lo[1]) + 1
	layers := (width + 1) / 2

	// Layer k is width-2k wide, so the roof has layers*(width-layers+1)
	// cells per row. The first layer alone must fit before multiplying.
	lim := int64(effectiveLimit(limit))
	if width > lim || rows > lim {
		return nil, 0, fault.Validationf(op, "a %dx%d top layer exceeds the safety limit of %d", width, rows, lim)
	}
	total := layers * (width - layers + 1) * rows
	if err := checkLimit(op, total+int64(len(units)), limit); err != nil {
		return nil, 0, err
	}
	if archetype == "" {
		archetype = DefaultArchetype
	}
	if color == "" {
		color = DefaultRoofColor
	}

	out := make([]lattice.Unit, 0, total)
	for k := 0; k < int(layers); k++ {
		z := topZ + 1 + k
		for x := lo[0] + k; x <= hi[0]-k; x++ {
			for y := lo[1]; y <= hi[1]; y++ {
				out = append(out, newUnit(archetype, color, lattice.Coord{x, y, z}))
			}
		}
	}
	return out, int(layers), nil
}
