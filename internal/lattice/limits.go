package lattice

import "brickforge.ai/internal/fault"

// MaxCoord bounds every anchor coordinate. Spans, sums and reflections of
// in-range anchors stay far from int overflow.
const MaxCoord = 1 << 30

func CoordInRange(v int) bool { return v >= -MaxCoord && v <= MaxCoord }

func (c Coord) InRange() bool {
	return CoordInRange(c[0]) && CoordInRange(c[1]) && CoordInRange(c[2])
}

// CheckUnits rejects anchors outside ±MaxCoord and rotations ParseRotation
// does not accept.
func CheckUnits(op string, units []Unit) error {
	for i, u := range units {
		if !u.Anchor().InRange() {
			return fault.Validationf(op, "unit %d: anchor %v outside ±%d", i, u.Anchor(), MaxCoord)
		}
		if _, err := ParseRotation(u.Rotation); err != nil {
			return fault.Validationf(op, "unit %d: %v", i, err)
		}
	}
	return nil
}
