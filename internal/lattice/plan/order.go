package plan

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
)

type Style string

const (
	StyleBottomUp Style = "bottom_up"
	StyleRandom   Style = "random"
	StyleSpiral   Style = "spiral"
	StyleExplode  Style = "explode"
)

func ParseStyle(s string) (Style, error) {
	switch st := Style(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StyleBottomUp, nil
	case StyleBottomUp, StyleRandom, StyleSpiral, StyleExplode:
		return st, nil
	default:
		return "", fmt.Errorf("unknown build order style %q", s)
	}
}

// BuildOrder returns a permutation of unit indices for style. rng is used only
// by StyleRandom.
func BuildOrder(units []lattice.Unit, style Style, rng *rand.Rand) ([]int, error) {
	if len(units) == 0 {
		return nil, fault.Validationf("build_order", "no units")
	}
	switch style {
	case StyleBottomUp, "":
		return BottomUp(units), nil
	case StyleRandom:
		order := identity(len(units))
		rng.Shuffle(len(order), func(a, b int) { order[a], order[b] = order[b], order[a] })
		return order, nil
	case StyleSpiral:
		var cx, cy float64
		for _, u := range units {
			cx += float64(u.X)
			cy += float64(u.Y)
		}
		cx /= float64(len(units))
		cy /= float64(len(units))
		angle := make([]float64, len(units))
		for i, u := range units {
			angle[i] = math.Atan2(float64(u.Y)-cy, float64(u.X)-cx)
		}
		order := identity(len(units))
		sort.SliceStable(order, func(a, b int) bool {
			ia, ib := order[a], order[b]
			if units[ia].Z != units[ib].Z {
				return units[ia].Z < units[ib].Z
			}
			return angle[ia] < angle[ib]
		})
		return order, nil
	case StyleExplode:
		// Assembled first, then top layers leave first.
		order := identity(len(units))
		sort.SliceStable(order, func(a, b int) bool {
			ua, ub := units[order[a]], units[order[b]]
			if ua.Z != ub.Z {
				return ua.Z > ub.Z
			}
			return ua.X > ub.X
		})
		return order, nil
	default:
		return nil, fault.Validationf("build_order", "unknown style %q", style)
	}
}
