// Package plan orders units for building: layer-by-layer instructions and
// animation build orders.
package plan

import (
	"fmt"
	"sort"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
)

type Instructions struct {
	Name             string `json:"name"`
	TotalSteps       int    `json:"total_steps"`
	TotalUnits       int    `json:"total_units"`
	Steps            []Step `json:"steps"`
	Parts            []Part `json:"parts"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}

type Step struct {
	Step        int         `json:"step"`
	Layer       int         `json:"layer"`
	Description string      `json:"description"`
	Units       []Placement `json:"units"`
	Cumulative  int         `json:"cumulative"`
}

type Placement struct {
	Index     int    `json:"index"`
	Archetype string `json:"type"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Rotation  int    `json:"rotation"`
}

type Part struct {
	Archetype string `json:"type"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Count     int    `json:"count"`
}

// BottomUp returns unit indices sorted by (z, x, y), ties in input order.
func BottomUp(units []lattice.Unit) []int {
	order := identity(len(units))
	sort.SliceStable(order, func(a, b int) bool {
		ua, ub := units[order[a]], units[order[b]]
		if ua.Z != ub.Z {
			return ua.Z < ub.Z
		}
		if ua.X != ub.X {
			return ua.X < ub.X
		}
		return ua.Y < ub.Y
	})
	return order
}

// BuildInstructions groups units into one step per layer, bottom to top.
func BuildInstructions(name string, units []lattice.Unit, cat *catalogs.Catalogs) (Instructions, error) {
	if len(units) == 0 {
		return Instructions{}, fault.Validationf("instructions", "no units to generate instructions for")
	}
	if name == "" {
		name = "Untitled"
	}
	ins := Instructions{Name: name, TotalUnits: len(units), EstimatedMinutes: max(1, len(units)*2)}

	type partKey struct{ archetype, color string }
	parts := map[partKey]*Part{}
	var cur *Step
	for _, i := range BottomUp(units) {
		u := units[i]
		if cur == nil || cur.Layer != u.Z {
			ins.Steps = append(ins.Steps, Step{Step: len(ins.Steps) + 1, Layer: u.Z})
			cur = &ins.Steps[len(ins.Steps)-1]
		}
		label := u.Archetype
		if a, ok := cat.Archetype(u.Archetype); ok {
			label = a.Name
		}
		cur.Units = append(cur.Units, Placement{
			Index: i, Archetype: u.Archetype, Name: label, Color: u.Color,
			X: u.X, Y: u.Y, Rotation: u.QuarterTurns() * 90,
		})
		k := partKey{u.Archetype, u.Color}
		if p, ok := parts[k]; ok {
			p.Count++
		} else {
			parts[k] = &Part{Archetype: u.Archetype, Name: label, Color: u.Color, Count: 1}
		}
	}

	total := 0
	for i := range ins.Steps {
		s := &ins.Steps[i]
		total += len(s.Units)
		s.Cumulative = total
		s.Description = fmt.Sprintf("Layer %d: place %d unit(s)", s.Layer+1, len(s.Units))
	}
	ins.TotalSteps = len(ins.Steps)

	ins.Parts = make([]Part, 0, len(parts))
	for _, p := range parts {
		ins.Parts = append(ins.Parts, *p)
	}
	sort.Slice(ins.Parts, func(a, b int) bool {
		pa, pb := ins.Parts[a], ins.Parts[b]
		if pa.Archetype != pb.Archetype {
			return pa.Archetype < pb.Archetype
		}
		return pa.Color < pb.Color
	})
	return ins, nil
}

func identity(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
