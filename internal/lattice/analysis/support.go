package analysis

import (
	"fmt"

	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/occupancy"
)

// Support emits one floating finding per unit above the ground layer with no
// unit anchored at any of the below offsets.
func Support(ix *occupancy.Index, below []lattice.Coord) []Finding {
	var out []Finding
	for i := 0; i < ix.Len(); i++ {
		u := ix.Unit(i)
		if u.Z <= 0 {
			continue
		}
		if ix.Any(u.Anchor(), below) {
			continue
		}
		out = append(out, Finding{
			Category: CategoryFloating,
			Severity: SeverityWarning,
			Units:    []int{i},
			Message:  fmt.Sprintf("unit %d at (%d, %d, %d) has no support below", i, u.X, u.Y, u.Z),
			Fix:      "add units underneath or connect it to nearby units",
		})
	}
	return out
}
