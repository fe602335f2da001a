package analysis

import (
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/occupancy"
)

type ShellResult struct {
	Interior []int `json:"interior"`
	Exterior []int `json:"exterior"`
}

// Shell splits units into interior (all six face neighbors occupied) and
// exterior. Every unit is treated as a unit cube at its anchor.
func Shell(ix *occupancy.Index) ShellResult {
	var res ShellResult
	for i := 0; i < ix.Len(); i++ {
		if ix.All(ix.Unit(i).Anchor(), occupancy.FaceNeighbors) {
			res.Interior = append(res.Interior, i)
		} else {
			res.Exterior = append(res.Exterior, i)
		}
	}
	return res
}

// Hollow returns the exterior shell of units, in input order, and the number
// of interior units dropped.
func Hollow(units []lattice.Unit) ([]lattice.Unit, int) {
	res := Shell(occupancy.Build(units))
	out := make([]lattice.Unit, 0, len(res.Exterior))
	for _, i := range res.Exterior {
		out = append(out, units[i])
	}
	return out, len(res.Interior)
}
