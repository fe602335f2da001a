package analysis

import (
	"math"

	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
)

const mmPerInch = 25.4

type Measurement struct {
	Bounds           BoundingBox    `json:"bounding_box"`
	UnitCount        int            `json:"unit_count"`
	TotalStuds       int            `json:"total_studs"`
	UniqueColors     int            `json:"unique_colors"`
	Colors           map[string]int `json:"color_breakdown"`
	UniqueArchetypes int            `json:"unique_types"`
	Archetypes       map[string]int `json:"type_breakdown"`
}

type BoundingBox struct {
	WidthStuds   float64 `json:"width_studs"`
	DepthStuds   float64 `json:"depth_studs"`
	HeightLayers float64 `json:"height_layers"`
	WidthMM      float64 `json:"width_mm"`
	DepthMM      float64 `json:"depth_mm"`
	HeightMM     float64 `json:"height_mm"`
	WidthIn      float64 `json:"width_in"`
	DepthIn      float64 `json:"depth_in"`
	HeightIn     float64 `json:"height_in"`
}

// Measure computes the overall extents and part breakdown of units. An empty
// list yields a zero measurement.
func Measure(units []lattice.Unit, cat *catalogs.Catalogs, lat tuning.Lattice) (Measurement, error) {
	m := Measurement{
		UnitCount:  len(units),
		Colors:     map[string]int{},
		Archetypes: map[string]int{},
	}
	if len(units) == 0 {
		return m, nil
	}
	minX, minY, minZ := math.Inf(1), math.Inf(1), math.Inf(1)
	maxX, maxY, maxZ := math.Inf(-1), math.Inf(-1), math.Inf(-1)
	for _, u := range units {
		e, err := unitExtent("measure", cat, u)
		if err != nil {
			return Measurement{}, err
		}
		x, y, z := float64(u.X), float64(u.Y), float64(u.Z)
		minX, maxX = min(minX, x), max(maxX, x+e.w)
		minY, maxY = min(minY, y), max(maxY, y+e.d)
		minZ, maxZ = min(minZ, z), max(maxZ, z+e.h)
		m.TotalStuds += e.studs
		m.Colors[u.Color]++
		m.Archetypes[u.Archetype]++
	}
	m.UniqueColors = len(m.Colors)
	m.UniqueArchetypes = len(m.Archetypes)

	b := &m.Bounds
	b.WidthStuds, b.DepthStuds, b.HeightLayers = maxX-minX, maxY-minY, maxZ-minZ
	b.WidthMM = round(b.WidthStuds*lat.PlanarMM, 1)
	b.DepthMM = round(b.DepthStuds*lat.PlanarMM, 1)
	b.HeightMM = round(b.HeightLayers*lat.VerticalMM, 1)
	b.WidthIn = round(b.WidthStuds*lat.PlanarMM/mmPerInch, 2)
	b.DepthIn = round(b.DepthStuds*lat.PlanarMM/mmPerInch, 2)
	b.HeightIn = round(b.HeightLayers*lat.VerticalMM/mmPerInch, 2)
	return m, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
