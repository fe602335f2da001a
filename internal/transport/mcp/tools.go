package mcp

import (
	"fmt"
	"strings"

	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/protocol"
)

const (
	toolPrefix  = "brickforge."
	catalogTool = toolPrefix + "catalog"
)

var toolDescriptions = map[string]string{
	protocol.TypeAnalyze:         "Run every analysis (overlap, support, connectivity, structure, symmetry, hollow) over the units.",
	protocol.TypeCheck:           "Report overlapping pairs and floating units.",
	protocol.TypeStructure:       "Score structural stability.",
	protocol.TypeSymmetry:        "Score mirror symmetry per axis.",
	protocol.TypeHollow:          "Classify units as shell or interior.",
	protocol.TypeMeasure:         "Measure bounds and physical dimensions in millimeters.",
	protocol.TypeRotate:          "Rotate units about their centroid by params.angle (90, 180, 270).",
	protocol.TypeScale:           "Scale unit positions by params.scale_factor.",
	protocol.TypeMirror:          "Mirror units across params.axis at params.center, optionally combining with the originals.",
	protocol.TypeExplode:         "Push units away from their centroid by params.gap_factor.",
	protocol.TypeRecolor:         "Replace params.old_color with params.new_color.",
	protocol.TypeRandomizeColors: "Assign random palette colors (params.seed for repeatable output).",
	protocol.TypeFill:            "Fill params.bounds with params.archetype units.",
	protocol.TypeArray:           "Repeat the first unit params.counts times at params.spacing.",
	protocol.TypeRoof:            "Build a stepped roof over the footprint of the units.",
	protocol.TypeInstructions:    "Produce layer-by-layer build instructions with a parts list.",
	protocol.TypeBuildOrder:      "Order units for assembly using params.style.",
	protocol.TypeImportLDraw:     "Convert LDraw text in params.content into units.",
	protocol.TypeExport:          "Write an STL or 3MF artifact (params.format) and return its download reference.",
}

var requestInputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":   map[string]any{"type": "string"},
		"units":  map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
		"params": map[string]any{"type": "object"},
	},
	"additionalProperties": false,
}

func toolName(requestType string) string {
	return toolPrefix + strings.ToLower(requestType)
}

func requestType(tool string) string {
	return strings.ToUpper(strings.TrimPrefix(tool, toolPrefix))
}

func toolList() []map[string]any {
	tools := make([]map[string]any, 0, len(protocol.RequestTypes)+1)
	for _, typ := range protocol.RequestTypes {
		tools = append(tools, map[string]any{
			"name":        toolName(typ),
			"description": toolDescriptions[typ],
			"inputSchema": requestInputSchema,
		})
	}
	tools = append(tools, map[string]any{
		"name":        catalogTool,
		"description": "List archetypes or colors known to the engine.",
		"inputSchema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string", "enum": []string{"archetypes", "colors"}},
			},
			"required": []string{"name"},
		},
	})
	return tools
}

func isKnownTool(name string) bool {
	if name == catalogTool {
		return true
	}
	if !strings.HasPrefix(name, toolPrefix) {
		return false
	}
	typ := requestType(name)
	for _, t := range protocol.RequestTypes {
		if t == typ {
			return true
		}
	}
	return false
}

type catalogResult struct {
	Name    string `json:"name"`
	Digest  string `json:"digest"`
	Entries any    `json:"entries"`
}

func catalogView(c *catalogs.Catalogs, name string) (catalogResult, error) {
	switch name {
	case "archetypes":
		out := make([]catalogs.Archetype, 0, len(c.Archetypes.IDs))
		for _, id := range c.Archetypes.IDs {
			out = append(out, c.Archetypes.ByID[id])
		}
		return catalogResult{Name: name, Digest: c.Archetypes.Digest, Entries: out}, nil
	case "colors":
		out := make([]catalogs.Color, 0, len(c.Colors.Palette))
		for _, id := range c.Colors.Palette {
			out = append(out, c.Colors.ByID[id])
		}
		return catalogResult{Name: name, Digest: c.Colors.Digest, Entries: out}, nil
	default:
		return catalogResult{}, fmt.Errorf("unknown catalog %q (want archetypes or colors)", name)
	}
}
