package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Lattice  Lattice  `yaml:"lattice"`
	Limits   Limits   `yaml:"limits"`
	Analysis Analysis `yaml:"analysis"`
	Export   Export   `yaml:"export"`
}

// Lattice holds the physical dimensions of one lattice cell, in millimeters.
type Lattice struct {
	PlanarMM       float64 `yaml:"planar_mm"`
	VerticalMM     float64 `yaml:"vertical_mm"`
	StudDiameterMM float64 `yaml:"stud_diameter_mm"`
	StudHeightMM   float64 `yaml:"stud_height_mm"`
	StudSides      int     `yaml:"stud_sides"`
	RoundSides     int     `yaml:"round_sides"`
}

type Limits struct {
	MaxUnits int `yaml:"max_units"`
}

type Analysis struct {
	AdjacencyThreshold int           `yaml:"adjacency_threshold"`
	SupportWindow      SupportWindow `yaml:"support_window"`
	TallThreshold      int           `yaml:"tall_threshold"`
	OverhangRatio      float64       `yaml:"overhang_ratio"`
}

// SupportWindow bounds the planar offsets (inclusive) checked one layer below
// a unit by the loose support check.
type SupportWindow struct {
	MinDX int `yaml:"min_dx"`
	MaxDX int `yaml:"max_dx"`
	MinDY int `yaml:"min_dy"`
	MaxDY int `yaml:"max_dy"`
}

type Export struct {
	Dir         string `yaml:"dir"`
	ReadableSTL bool   `yaml:"readable_stl"`
}

func Defaults() Tuning {
	return Tuning{
		Lattice: Lattice{
			PlanarMM:       8.0,
			VerticalMM:     9.6,
			StudDiameterMM: 4.8,
			StudHeightMM:   1.7,
			StudSides:      8,
			RoundSides:     16,
		},
		Limits: Limits{MaxUnits: 10000},
		Analysis: Analysis{
			AdjacencyThreshold: 4,
			SupportWindow:      SupportWindow{MinDX: -1, MaxDX: 2, MinDY: -1, MaxDY: 2},
			TallThreshold:      30,
			OverhangRatio:      0.3,
		},
		Export: Export{Dir: "./data/exports"},
	}
}

// Load reads path over Defaults(); keys absent from the file keep their
// default values.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// MaxUnitsCeiling is the largest accepted limits.max_units.
const MaxUnitsCeiling = 1 << 20

func (t Tuning) Validate() error {
	l := t.Lattice
	if l.PlanarMM <= 0 || l.VerticalMM <= 0 {
		return fmt.Errorf("lattice scales must be positive")
	}
	if l.StudDiameterMM <= 0 || l.StudHeightMM <= 0 {
		return fmt.Errorf("stud dimensions must be positive")
	}
	if l.StudSides < 3 || l.RoundSides < 3 {
		return fmt.Errorf("tessellation needs at least 3 sides")
	}
	if t.Limits.MaxUnits <= 0 || t.Limits.MaxUnits > MaxUnitsCeiling {
		return fmt.Errorf("limits.max_units must be in 1..%d", MaxUnitsCeiling)
	}
	w := t.Analysis.SupportWindow
	if w.MinDX > w.MaxDX || w.MinDY > w.MaxDY {
		return fmt.Errorf("analysis.support_window is inverted")
	}
	if t.Analysis.AdjacencyThreshold < 0 {
		return fmt.Errorf("analysis.adjacency_threshold must be >= 0")
	}
	return nil
}
