package analysis

import (
	"fmt"
	"strings"

	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/occupancy"
	"brickforge.ai/internal/lattice/tuning"
)

// SupportMode selects how strictly the support pass looks for a unit below.
type SupportMode string

const (
	// SupportStrict requires a unit anchored directly below.
	SupportStrict SupportMode = "strict"
	// SupportWindow accepts any unit anchored in a planar window one layer down.
	SupportWindow SupportMode = "window"
)

func ParseSupportMode(s string) (SupportMode, error) {
	switch SupportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SupportStrict:
		return SupportStrict, nil
	case SupportWindow:
		return SupportWindow, nil
	default:
		return "", fmt.Errorf("support_mode must be 'strict' or 'window'; got %q", s)
	}
}

type Config struct {
	Support            SupportMode
	Window             tuning.SupportWindow
	AdjacencyThreshold int
	TallThreshold      int
	OverhangRatio      float64
	SymmetryAxis       lattice.Axis
}

func ConfigFrom(t tuning.Analysis) Config {
	return Config{
		Support:            SupportStrict,
		Window:             t.SupportWindow,
		AdjacencyThreshold: t.AdjacencyThreshold,
		TallThreshold:      t.TallThreshold,
		OverhangRatio:      t.OverhangRatio,
		SymmetryAxis:       lattice.AxisX,
	}
}

func DefaultConfig() Config { return ConfigFrom(tuning.Defaults().Analysis) }

// SupportOffsets returns the cells checked below a unit for mode.
func (c Config) SupportOffsets(mode SupportMode) []lattice.Coord {
	if mode == SupportWindow {
		w := c.Window
		return occupancy.Window(w.MinDX, w.MaxDX, w.MinDY, w.MaxDY, -1)
	}
	return occupancy.Below
}
