package analysis

import (
	"fmt"

	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/occupancy"
)

// Connectivity returns the indices, ascending, of units not reachable from
// unit 0. Two units are adjacent when their anchors are within threshold
// Manhattan distance. This approximates contact by proximity; it does not
// test footprint overlap.
func Connectivity(ix *occupancy.Index, threshold int) []int {
	n := ix.Len()
	if n < 2 {
		return nil
	}
	ball := occupancy.ManhattanBall(threshold)
	seen := make([]bool, n)
	queue := make([]int, 0, n)

	visit := func(us []int) {
		for _, j := range us {
			if !seen[j] {
				seen[j] = true
				queue = append(queue, j)
			}
		}
	}
	visit(ix.At(ix.Unit(0).Anchor()))
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		ix.Probe(ix.Unit(i).Anchor(), ball, func(_ lattice.Coord, us []int) bool {
			visit(us)
			return true
		})
	}

	var out []int
	for i, ok := range seen {
		if !ok {
			out = append(out, i)
		}
	}
	return out
}

func disconnectedFindings(ix *occupancy.Index, disc []int) []Finding {
	out := make([]Finding, 0, len(disc))
	for _, i := range disc {
		u := ix.Unit(i)
		out = append(out, Finding{
			Category: CategoryDisconnected,
			Severity: SeverityMedium,
			Units:    []int{i},
			Message:  fmt.Sprintf("unit %d at (%d, %d, %d) is disconnected from the main structure", i, u.X, u.Y, u.Z),
			Fix:      "connect all pieces or print them separately",
		})
	}
	return out
}
