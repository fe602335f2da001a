package lattice

import "fmt"

// ParseRotation converts a client-provided rotation into a quarter-turn count
// in [0,3]. It accepts quarter turns (0..3) or degrees in multiples of 90.
func ParseRotation(r int) (int, error) {
	switch {
	case r >= 0 && r <= 3:
		return r, nil
	case r%90 == 0:
		return Turns(r / 90), nil
	default:
		return 0, fmt.Errorf("rotation must be 0..3 quarter turns or a multiple of 90 degrees; got %d", r)
	}
}

// Turns reduces any quarter-turn count to [0,3].
func Turns(q int) int {
	q %= 4
	if q < 0 {
		q += 4
	}
	return q
}

// RotateXY rotates an (x,y) offset counter-clockwise about +Z by rot*90
// degrees. rot must be a normalized quarter-turn count in [0,3].
func RotateXY(x, y float64, rot int) (rx, ry float64) {
	switch rot & 3 {
	case 0:
		return x, y
	case 1:
		return -y, x
	case 2:
		return -x, -y
	default: // 3
		return y, -x
	}
}

// Footprint returns the planar extent of a w×d footprint after rot quarter turns.
func Footprint(w, d float64, rot int) (float64, float64) {
	if rot&1 == 1 {
		return d, w
	}
	return w, d
}
