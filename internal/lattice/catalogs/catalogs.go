package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

//go:embed defaults/*.json
var defaultsFS embed.FS

type Catalogs struct {
	Archetypes ArchetypeCatalog
	Colors     ColorCatalog
}

type ArchetypeCatalog struct {
	ByID   map[string]Archetype
	IDs    []string
	Digest string
}

// Shape is the solid kind an archetype is synthesized as.
type Shape string

const (
	ShapeBox      Shape = "box"
	ShapeCylinder Shape = "cylinder"
	ShapeSlope    Shape = "slope"
	ShapeCone     Shape = "cone"
	ShapeDome     Shape = "dome"
)

type Archetype struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Width  int     `json:"width"`
	Depth  int     `json:"depth"`
	Height float64 `json:"height"` // brick layers; plates are 1/3
	Studs  int     `json:"studs"`
	Shape  Shape   `json:"shape,omitempty"`
}

// FlatRows is how many rows of a slope stay level before the incline: enough
// to seat every stud, at least one, and never the whole depth.
func (a Archetype) FlatRows() int {
	if a.Width <= 0 || a.Depth <= 1 {
		return 1
	}
	rows := (a.Studs + a.Width - 1) / a.Width
	return min(max(rows, 1), a.Depth-1)
}

// StudCenters returns stud centers in planar lattice units relative to the
// archetype's unrotated footprint origin.
func (a Archetype) StudCenters() [][2]float64 {
	if a.Studs <= 0 {
		return nil
	}
	switch a.Shape {
	case ShapeBox:
		out := make([][2]float64, 0, a.Width*a.Depth)
		for sw := 0; sw < a.Width; sw++ {
			for sd := 0; sd < a.Depth; sd++ {
				out = append(out, [2]float64{float64(sw) + 0.5, float64(sd) + 0.5})
			}
		}
		return out
	case ShapeSlope:
		// Studs fill the flat rows at the high edge (y=0), row by row.
		out := make([][2]float64, 0, a.Studs)
		for sd := 0; sd < a.FlatRows(); sd++ {
			for sw := 0; sw < a.Width && len(out) < a.Studs; sw++ {
				out = append(out, [2]float64{float64(sw) + 0.5, float64(sd) + 0.5})
			}
		}
		return out
	case ShapeCylinder:
		return [][2]float64{{float64(a.Width) / 2, float64(a.Depth) / 2}}
	default:
		return nil
	}
}

type ColorCatalog struct {
	ByID    map[string]Color
	Palette []string // sorted ids
	Digest  string
}

type Color struct {
	ID  string `json:"id"`
	Hex string `json:"hex"`
}

// Hex resolves a color name; unknown names are returned as given.
func (c ColorCatalog) Hex(name string) string {
	if col, ok := c.ByID[strings.ToLower(name)]; ok {
		return col.Hex
	}
	return name
}

var loadDefault = sync.OnceValues(func() (*Catalogs, error) {
	var c Catalogs
	raw, err := defaultsFS.ReadFile("defaults/archetypes.json")
	if err != nil {
		return nil, err
	}
	if err := parseArchetypes(raw, &c.Archetypes); err != nil {
		return nil, err
	}
	raw, err = defaultsFS.ReadFile("defaults/colors.json")
	if err != nil {
		return nil, err
	}
	if err := parseColors(raw, &c.Colors); err != nil {
		return nil, err
	}
	return &c, nil
})

// Default returns the process-wide built-in catalogs. The value is built once
// and must be treated as read-only.
func Default() *Catalogs {
	c, err := loadDefault()
	if err != nil {
		panic(fmt.Sprintf("catalogs: embedded defaults: %v", err))
	}
	return c
}

// Load reads archetypes.json and colors.json from configDir. A missing file
// falls back to the embedded default for that catalog.
func Load(configDir string) (*Catalogs, error) {
	def := Default()
	c := Catalogs{Archetypes: def.Archetypes, Colors: def.Colors}

	raw, err := os.ReadFile(filepath.Join(configDir, "archetypes.json"))
	switch {
	case err == nil:
		if err := parseArchetypes(raw, &c.Archetypes); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, err
	}

	raw, err = os.ReadFile(filepath.Join(configDir, "colors.json"))
	switch {
	case err == nil:
		if err := parseColors(raw, &c.Colors); err != nil {
			return nil, err
		}
	case !os.IsNotExist(err):
		return nil, err
	}
	return &c, nil
}

func (c *Catalogs) Archetype(id string) (Archetype, bool) {
	a, ok := c.Archetypes.ByID[id]
	return a, ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func parseArchetypes(raw []byte, out *ArchetypeCatalog) error {
	var defs []Archetype
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("archetypes.json: %w", err)
	}
	byID := make(map[string]Archetype, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("archetypes.json: empty id")
		}
		if d.Width <= 0 || d.Depth <= 0 || d.Height <= 0 {
			return fmt.Errorf("archetypes.json: %s: non-positive footprint", d.ID)
		}
		if d.Shape == "" {
			d.Shape = ShapeBox
		}
		byID[d.ID] = d
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out.ByID = byID
	out.IDs = ids
	out.Digest = sha256Hex(raw)
	return nil
}

func parseColors(raw []byte, out *ColorCatalog) error {
	var defs []Color
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("colors.json: %w", err)
	}
	byID := make(map[string]Color, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("colors.json: empty id")
		}
		d.ID = strings.ToLower(d.ID)
		byID[d.ID] = d
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out.ByID = byID
	out.Palette = ids
	out.Digest = sha256Hex(raw)
	return nil
}
