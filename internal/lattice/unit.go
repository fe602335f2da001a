package lattice

import (
	"fmt"
	"strings"
)

// MaxUnits caps bulk generation and synthesis.
const MaxUnits = 10000

// Coord is an integer anchor on the lattice. X and Y are planar, Z is the layer.
type Coord [3]int

func (c Coord) Add(o Coord) Coord { return Coord{c[0] + o[0], c[1] + o[1], c[2] + o[2]} }

// Manhattan returns |dx|+|dy|+|dz|.
func (c Coord) Manhattan(o Coord) int {
	return abs(c[0]-o[0]) + abs(c[1]-o[1]) + abs(c[2]-o[2])
}

// Unit is one placed building block. Values are never mutated in place;
// transforms return copies.
type Unit struct {
	ID        string `json:"id,omitempty"`
	Archetype string `json:"type"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Z         int    `json:"z"`
	Color     string `json:"color,omitempty"`

	// Rotation is a quarter-turn count or a multiple of 90 degrees about +Z.
	Rotation int `json:"rotation,omitempty"`
	// Scale multiplies the archetype geometry; 0 means 1.
	Scale float64 `json:"scale,omitempty"`
}

func (u Unit) Anchor() Coord { return Coord{u.X, u.Y, u.Z} }

// At returns a copy of u moved to c.
func (u Unit) At(c Coord) Unit {
	u.X, u.Y, u.Z = c[0], c[1], c[2]
	return u
}

// QuarterTurns is the unit's rotation in [0,3]. Rotations CheckUnits would
// reject count as 0.
func (u Unit) QuarterTurns() int {
	q, _ := ParseRotation(u.Rotation)
	return q
}

func (u Unit) EffectiveScale() float64 {
	if u.Scale <= 0 {
		return 1
	}
	return u.Scale
}

// Axis selects one lattice axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "x", "":
		return AxisX, nil
	case "y":
		return AxisY, nil
	case "z":
		return AxisZ, nil
	default:
		return 0, fmt.Errorf("axis must be 'x', 'y', or 'z'; got %q", s)
	}
}

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "z"
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Bounds returns the per-axis min and max anchors of units. ok is false when
// units is empty.
func Bounds(units []Unit) (min, max Coord, ok bool) {
	if len(units) == 0 {
		return min, max, false
	}
	min, max = units[0].Anchor(), units[0].Anchor()
	for _, u := range units[1:] {
		c := u.Anchor()
		for a := 0; a < 3; a++ {
			if c[a] < min[a] {
				min[a] = c[a]
			}
			if c[a] > max[a] {
				max[a] = c[a]
			}
		}
	}
	return min, max, true
}
