package analysis

import (
	"fmt"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/occupancy"
)

const (
	penaltyFloating     = 5
	penaltyNoBase       = 25
	penaltyImbalance    = 15
	penaltyTall         = 5
	penaltyOverhang     = 10
	penaltyDisconnected = 10
)

type StructuralReport struct {
	Score        int             `json:"score"`
	Grade        string          `json:"grade"`
	Printability string          `json:"printability"`
	Issues       []Finding       `json:"issues"`
	Warnings     []Finding       `json:"warnings"`
	Stats        StructuralStats `json:"stats"`
}

type StructuralStats struct {
	TotalUnits    int        `json:"total_units"`
	FloatingUnits int        `json:"floating_units"`
	MaxHeight     int        `json:"max_height"`
	OverhangCount int        `json:"overhang_count"`
	Disconnected  int        `json:"disconnected"`
	CenterOfMass  [2]float64 `json:"center_of_mass"`
}

// Structural scores how likely the scene is to stand and print. Every unit must
// reference a known archetype.
func Structural(units []lattice.Unit, cat *catalogs.Catalogs, cfg Config) (StructuralReport, error) {
	const op = "structural"
	var rep StructuralReport
	if len(units) == 0 {
		return rep, fault.Validationf(op, "no units to check")
	}
	exts := make([]extent, len(units))
	for i, u := range units {
		e, err := unitExtent(op, cat, u)
		if err != nil {
			return rep, err
		}
		exts[i] = e
	}

	ix := occupancy.Build(units)
	score := 100
	stats := StructuralStats{TotalUnits: len(units)}

	floating := Support(ix, cfg.SupportOffsets(SupportWindow))
	stats.FloatingUnits = len(floating)
	if len(floating) > 0 {
		score -= penaltyFloating * len(floating)
		rep.Issues = append(rep.Issues, Finding{
			Category: CategoryFloating,
			Severity: SeverityHigh,
			Units:    unitsOf(floating),
			Message:  fmt.Sprintf("%d unit(s) have no support below them", len(floating)),
			Fix:      "add units underneath floating pieces or connect them to nearby units",
		})
	}

	var sumX, sumY float64
	haveBase := false
	var baseMinX, baseMaxX, baseMinY, baseMaxY float64
	for i, u := range units {
		sumX += float64(u.X)
		sumY += float64(u.Y)
		if u.Z > stats.MaxHeight {
			stats.MaxHeight = u.Z
		}
		if u.Z != 0 {
			continue
		}
		x0, y0 := float64(u.X), float64(u.Y)
		x1, y1 := x0+exts[i].w, y0+exts[i].d
		if !haveBase {
			baseMinX, baseMaxX, baseMinY, baseMaxY = x0, x1, y0, y1
			haveBase = true
			continue
		}
		baseMinX, baseMaxX = min(baseMinX, x0), max(baseMaxX, x1)
		baseMinY, baseMaxY = min(baseMinY, y0), max(baseMaxY, y1)
	}
	n := float64(len(units))
	stats.CenterOfMass = [2]float64{sumX / n, sumY / n}

	if !haveBase {
		score -= penaltyNoBase
		rep.Issues = append(rep.Issues, Finding{
			Category: CategoryNoBase,
			Severity: SeverityHigh,
			Message:  "no units at ground level (z=0)",
			Fix:      "add a foundation layer at z=0",
		})
	} else {
		cx, cy := stats.CenterOfMass[0], stats.CenterOfMass[1]
		if cx < baseMinX || cx > baseMaxX || cy < baseMinY || cy > baseMaxY {
			score -= penaltyImbalance
			rep.Issues = append(rep.Issues, Finding{
				Category: CategoryImbalance,
				Severity: SeverityMedium,
				Message:  "center of mass is outside the base footprint; the build may tip over",
				Fix:      "widen the base or center the upper portions",
			})
		}
	}

	if stats.MaxHeight > cfg.TallThreshold {
		score -= penaltyTall
		rep.Warnings = append(rep.Warnings, Finding{
			Category: CategoryTall,
			Severity: SeverityLow,
			Message:  fmt.Sprintf("build is %d layers tall and may need print supports", stats.MaxHeight),
			Fix:      "split it into sections",
		})
	}

	overhangs := Support(ix, occupancy.Below)
	stats.OverhangCount = len(overhangs)
	if float64(len(overhangs)) > n*cfg.OverhangRatio {
		score -= penaltyOverhang
		rep.Warnings = append(rep.Warnings, Finding{
			Category: CategoryOverhang,
			Severity: SeverityMedium,
			Units:    unitsOf(overhangs),
			Message:  fmt.Sprintf("%d unit(s) overhang the layer below", len(overhangs)),
			Fix:      "reduce overhangs or plan for support material",
		})
	}

	disc := Connectivity(ix, cfg.AdjacencyThreshold)
	stats.Disconnected = len(disc)
	if len(disc) > 0 {
		score -= penaltyDisconnected
		rep.Warnings = append(rep.Warnings, Finding{
			Category: CategoryDisconnected,
			Severity: SeverityMedium,
			Units:    disc,
			Message:  fmt.Sprintf("%d unit(s) appear disconnected from the main structure", len(disc)),
			Fix:      "connect all pieces or they will be separate prints",
		})
	}

	rep.Score = clamp(score, 0, 100)
	rep.Grade = Grade(rep.Score)
	rep.Printability = Printability(rep.Score)
	rep.Stats = stats
	if rep.Issues == nil {
		rep.Issues = []Finding{}
	}
	if rep.Warnings == nil {
		rep.Warnings = []Finding{}
	}
	return rep, nil
}

func Grade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 75:
		return "B"
	case score >= 60:
		return "C"
	case score >= 40:
		return "D"
	default:
		return "F"
	}
}

func Printability(score int) string {
	switch {
	case score >= 80:
		return "Easy"
	case score >= 60:
		return "Moderate"
	default:
		return "Difficult"
	}
}

func unitsOf(fs []Finding) []int {
	out := make([]int, 0, len(fs))
	for _, f := range fs {
		out = append(out, f.Units...)
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

