package analysis

import (
	"fmt"
	"strings"

	"brickforge.ai/internal/lattice"
)

const maxUnmatchedReported = 50

type SymmetryResult struct {
	Axis        string      `json:"axis"`
	Midpoint    float64     `json:"midpoint"`
	Score       float64     `json:"score"`
	Symmetrical bool        `json:"symmetrical"`
	Matched     int         `json:"matched"`
	Total       int         `json:"total"`
	Unmatched   []Unmatched `json:"unmatched,omitempty"`
	Suggestions []string    `json:"suggestions"`
}

type Unmatched struct {
	Unit     int           `json:"unit"`
	Position lattice.Coord `json:"position"`
	Expected lattice.Coord `json:"expected_mirror"`
	Color    string        `json:"color"`
}

type colorCell struct {
	c     lattice.Coord
	color string
}

// Symmetry mirrors each unit across the midpoint of axis and counts units
// whose mirror image (same color) exists. Only the chosen axis is mirrored.
func Symmetry(units []lattice.Unit, axis lattice.Axis) SymmetryResult {
	res := SymmetryResult{Axis: axis.String(), Score: 1, Symmetrical: true, Total: len(units), Suggestions: []string{}}
	min, max, ok := lattice.Bounds(units)
	if !ok {
		return res
	}
	a := int(axis)
	res.Midpoint = float64(min[a]+max[a]) / 2

	cells := make(map[colorCell]struct{}, len(units))
	for _, u := range units {
		cells[colorCell{u.Anchor(), u.Color}] = struct{}{}
	}

	var unmatched []Unmatched
	for i, u := range units {
		m := u.Anchor()
		// 2*midpoint - v, kept in integers.
		m[a] = min[a] + max[a] - m[a]
		if _, ok := cells[colorCell{m, u.Color}]; ok {
			res.Matched++
			continue
		}
		unmatched = append(unmatched, Unmatched{Unit: i, Position: u.Anchor(), Expected: m, Color: u.Color})
	}

	res.Score = float64(res.Matched) / float64(len(units))
	res.Symmetrical = res.Matched == len(units)
	if len(unmatched) > maxUnmatchedReported {
		res.Unmatched = unmatched[:maxUnmatchedReported]
	} else {
		res.Unmatched = unmatched
	}

	if !res.Symmetrical {
		res.Suggestions = append(res.Suggestions,
			fmt.Sprintf("add %d mirrored unit(s) along the %s axis to reach full symmetry", len(unmatched), strings.ToUpper(res.Axis)))
	}
	switch {
	case res.Score >= 0.8 && res.Score < 1:
		res.Suggestions = append(res.Suggestions, "near-symmetrical: minor adjustments would make it exact")
	case res.Score < 0.5:
		res.Suggestions = append(res.Suggestions, "low symmetry: consider building one half and mirroring it")
	}
	return res
}
