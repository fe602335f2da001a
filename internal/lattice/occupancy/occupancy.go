// Package occupancy indexes units by their anchor cell.
//
// The index is an anchor map, not a rasterization: a unit with a larger
// footprint still occupies only its anchor cell. Every analysis pass relies on
// that approximation.
package occupancy

import "brickforge.ai/internal/lattice"

type Index struct {
	units []lattice.Unit
	cells map[lattice.Coord][]int
}

// Build indexes units in input order. Units sharing an anchor are all kept,
// earliest first.
func Build(units []lattice.Unit) *Index {
	ix := &Index{
		units: units,
		cells: make(map[lattice.Coord][]int, len(units)),
	}
	for i, u := range units {
		c := u.Anchor()
		ix.cells[c] = append(ix.cells[c], i)
	}
	return ix
}

func (ix *Index) Len() int { return len(ix.units) }

func (ix *Index) Unit(i int) lattice.Unit { return ix.units[i] }

func (ix *Index) Units() []lattice.Unit { return ix.units }

func (ix *Index) Contains(c lattice.Coord) bool {
	return len(ix.cells[c]) > 0
}

// At returns the indices of units anchored at c in insertion order. The slice
// is shared with the index and must not be modified.
func (ix *Index) At(c lattice.Coord) []int {
	return ix.cells[c]
}

// Probe calls fn for every occupied cell at origin+offset. It stops early when
// fn returns false.
func (ix *Index) Probe(origin lattice.Coord, offsets []lattice.Coord, fn func(c lattice.Coord, units []int) bool) {
	for _, off := range offsets {
		c := origin.Add(off)
		if us := ix.cells[c]; len(us) > 0 {
			if !fn(c, us) {
				return
			}
		}
	}
}

// Any reports whether any cell at origin+offset is occupied.
func (ix *Index) Any(origin lattice.Coord, offsets []lattice.Coord) bool {
	found := false
	ix.Probe(origin, offsets, func(lattice.Coord, []int) bool {
		found = true
		return false
	})
	return found
}

// All reports whether every cell at origin+offset is occupied.
func (ix *Index) All(origin lattice.Coord, offsets []lattice.Coord) bool {
	for _, off := range offsets {
		if !ix.Contains(origin.Add(off)) {
			return false
		}
	}
	return true
}

// Bounds returns the per-axis min and max anchors. ok is false for an empty index.
func (ix *Index) Bounds() (min, max lattice.Coord, ok bool) {
	return lattice.Bounds(ix.units)
}
