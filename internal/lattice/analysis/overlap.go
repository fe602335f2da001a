package analysis

import (
	"fmt"

	"brickforge.ai/internal/lattice/occupancy"
)

type OverlapResult struct {
	Findings []Finding `json:"findings"`
	// FirstClaims counts units that were first at their anchor; Duplicates
	// counts the rest. They always sum to the unit count.
	FirstClaims int `json:"first_claims"`
	Duplicates  int `json:"duplicates"`
}

// Overlap reports every unit whose anchor was already claimed by an earlier unit.
func Overlap(ix *occupancy.Index) OverlapResult {
	var res OverlapResult
	for i := 0; i < ix.Len(); i++ {
		u := ix.Unit(i)
		first := ix.At(u.Anchor())[0]
		if first == i {
			res.FirstClaims++
			continue
		}
		res.Duplicates++
		res.Findings = append(res.Findings, Finding{
			Category: CategoryOverlap,
			Severity: SeverityError,
			Units:    []int{first, i},
			Message:  fmt.Sprintf("unit %d overlaps unit %d at (%d, %d, %d)", i, first, u.X, u.Y, u.Z),
			Fix:      "move one of the units to a free cell",
		})
	}
	return res
}
