package occupancy

import "brickforge.ai/internal/lattice"

// FaceNeighbors are the six axis-aligned face-adjacent offsets.
var FaceNeighbors = []lattice.Coord{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

// Below is the single cell directly underneath.
var Below = []lattice.Coord{{0, 0, -1}}

// Neighbors26 is the full 3×3×3 neighborhood minus the center.
var Neighbors26 = func() []lattice.Coord {
	out := make([]lattice.Coord, 0, 26)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, lattice.Coord{dx, dy, dz})
			}
		}
	}
	return out
}()

// Window returns the planar offsets [minDX,maxDX]×[minDY,maxDY] at layer dz.
func Window(minDX, maxDX, minDY, maxDY, dz int) []lattice.Coord {
	if minDX > maxDX || minDY > maxDY {
		return nil
	}
	out := make([]lattice.Coord, 0, (maxDX-minDX+1)*(maxDY-minDY+1))
	for dx := minDX; dx <= maxDX; dx++ {
		for dy := minDY; dy <= maxDY; dy++ {
			out = append(out, lattice.Coord{dx, dy, dz})
		}
	}
	return out
}

// ManhattanBall returns every non-zero offset with |dx|+|dy|+|dz| <= r.
func ManhattanBall(r int) []lattice.Coord {
	if r <= 0 {
		return nil
	}
	var out []lattice.Coord
	for dz := -r; dz <= r; dz++ {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				d := abs(dx) + abs(dy) + abs(dz)
				if d == 0 || d > r {
					continue
				}
				out = append(out, lattice.Coord{dx, dy, dz})
			}
		}
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
