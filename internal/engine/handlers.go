package engine

import (
	"context"

	"brickforge.ai/internal/export"
	"brickforge.ai/internal/export/stl"
	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/importer/ldraw"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/analysis"
	"brickforge.ai/internal/lattice/generate"
	"brickforge.ai/internal/lattice/plan"
	"brickforge.ai/internal/lattice/transform"
	"brickforge.ai/internal/protocol"
)

const defaultExplodeGap = 2.0

func (s *Service) routes() map[string]handlerFunc {
	return map[string]handlerFunc{
		protocol.TypeAnalyze:         s.analyze,
		protocol.TypeCheck:           s.check,
		protocol.TypeStructure:       s.structure,
		protocol.TypeSymmetry:        s.symmetry,
		protocol.TypeHollow:          s.hollow,
		protocol.TypeMeasure:         s.measure,
		protocol.TypeRotate:          s.rotate,
		protocol.TypeScale:           s.scale,
		protocol.TypeMirror:          s.mirror,
		protocol.TypeExplode:         s.explode,
		protocol.TypeRecolor:         s.recolor,
		protocol.TypeRandomizeColors: s.randomizeColors,
		protocol.TypeFill:            s.fill,
		protocol.TypeArray:           s.array,
		protocol.TypeRoof:            s.roof,
		protocol.TypeInstructions:    s.instructions,
		protocol.TypeBuildOrder:      s.buildOrder,
		protocol.TypeImportLDraw:     s.importLDraw,
		protocol.TypeExport:          s.export,
	}
}

// analysisConfig applies request overrides to the tuned analysis config.
func (s *Service) analysisConfig(op string, p protocol.Params) (analysis.Config, error) {
	cfg := analysis.ConfigFrom(s.tune.Analysis)
	mode, err := analysis.ParseSupportMode(p.SupportMode)
	if err != nil {
		return cfg, fault.Validationf(op, "%v", err)
	}
	cfg.Support = mode
	axis, err := lattice.ParseAxis(p.Axis)
	if err != nil {
		return cfg, fault.Validationf(op, "%v", err)
	}
	cfg.SymmetryAxis = axis
	return cfg, nil
}

func (s *Service) analyze(ctx context.Context, req *protocol.Request) (outcome, error) {
	cfg, err := s.analysisConfig("analyze", req.Params)
	if err != nil {
		return outcome{}, err
	}
	rep, err := analysis.Analyze(ctx, req.Units, cfg)
	if err != nil {
		return outcome{}, err
	}
	return outcome{findings: rep.Findings, result: rep}, nil
}

type checkResult struct {
	Valid    bool `json:"valid"`
	Overlaps int  `json:"overlaps"`
	Floating int  `json:"floating"`
}

func (s *Service) check(_ context.Context, req *protocol.Request) (outcome, error) {
	cfg, err := s.analysisConfig("check", req.Params)
	if err != nil {
		return outcome{}, err
	}
	fs := analysis.Check(req.Units, cfg)
	res := checkResult{
		Overlaps: analysis.Count(fs, analysis.CategoryOverlap),
		Floating: analysis.Count(fs, analysis.CategoryFloating),
	}
	res.Valid = res.Overlaps == 0 && res.Floating == 0
	return outcome{findings: fs, result: res}, nil
}

func (s *Service) structure(_ context.Context, req *protocol.Request) (outcome, error) {
	cfg, err := s.analysisConfig("structural", req.Params)
	if err != nil {
		return outcome{}, err
	}
	rep, err := analysis.Structural(req.Units, s.cat, cfg)
	if err != nil {
		return outcome{}, err
	}
	return outcome{findings: append(append([]analysis.Finding{}, rep.Issues...), rep.Warnings...), result: rep}, nil
}

func (s *Service) symmetry(_ context.Context, req *protocol.Request) (outcome, error) {
	axis, err := lattice.ParseAxis(req.Params.Axis)
	if err != nil {
		return outcome{}, fault.Validationf("symmetry", "%v", err)
	}
	return outcome{result: analysis.Symmetry(req.Units, axis)}, nil
}

type hollowResult struct {
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
}

func (s *Service) hollow(_ context.Context, req *protocol.Request) (outcome, error) {
	kept, removed := analysis.Hollow(req.Units)
	return outcome{units: kept, result: hollowResult{Kept: len(kept), Removed: removed}}, nil
}

func (s *Service) measure(_ context.Context, req *protocol.Request) (outcome, error) {
	m, err := analysis.Measure(req.Units, s.cat, s.tune.Lattice)
	if err != nil {
		return outcome{}, err
	}
	return outcome{result: m}, nil
}

func (s *Service) rotate(_ context.Context, req *protocol.Request) (outcome, error) {
	units, err := transform.Rotate(req.Units, req.Params.Angle)
	return outcome{units: units}, err
}

func (s *Service) scale(_ context.Context, req *protocol.Request) (outcome, error) {
	units, err := transform.Scale(req.Units, req.Params.ScaleFactor)
	return outcome{units: units}, err
}

type mirrorResult struct {
	Axis     string `json:"axis"`
	Center   int    `json:"center"`
	Mirrored int    `json:"mirrored"`
	Combined bool   `json:"combined"`
}

func (s *Service) mirror(_ context.Context, req *protocol.Request) (outcome, error) {
	axis, err := lattice.ParseAxis(req.Params.Axis)
	if err != nil {
		return outcome{}, fault.Validationf("mirror", "%v", err)
	}
	center := 0
	if req.Params.Center != nil {
		center = *req.Params.Center
	}
	mirrored, err := transform.Mirror(req.Units, s.cat, axis, center)
	if err != nil {
		return outcome{}, err
	}
	res := mirrorResult{Axis: axis.String(), Center: center, Mirrored: len(mirrored), Combined: req.Params.Combine}
	if req.Params.Combine {
		combined := make([]lattice.Unit, 0, len(req.Units)+len(mirrored))
		combined = append(append(combined, req.Units...), mirrored...)
		if len(combined) > s.tune.Limits.MaxUnits {
			return outcome{}, fault.Validationf("mirror", "%d units exceeds the safety limit of %d", len(combined), s.tune.Limits.MaxUnits)
		}
		return outcome{units: combined, result: res}, nil
	}
	return outcome{units: mirrored, result: res}, nil
}

func (s *Service) explode(_ context.Context, req *protocol.Request) (outcome, error) {
	gap := defaultExplodeGap
	if req.Params.GapFactor != nil {
		gap = *req.Params.GapFactor
	}
	units, err := transform.Explode(req.Units, gap)
	return outcome{units: units}, err
}

type recolorResult struct {
	Replaced int `json:"replaced"`
}

func (s *Service) recolor(_ context.Context, req *protocol.Request) (outcome, error) {
	units, n, err := transform.Recolor(req.Units, req.Params.OldColor, req.Params.NewColor)
	if err != nil {
		return outcome{}, err
	}
	return outcome{units: units, result: recolorResult{Replaced: n}}, nil
}

func (s *Service) randomizeColors(_ context.Context, req *protocol.Request) (outcome, error) {
	units, err := transform.RandomizeColors(req.Units, s.cat.Colors.Palette, s.rng(req.Params.Seed))
	return outcome{units: units}, err
}

type generatedResult struct {
	Generated int `json:"generated"`
	Layers    int `json:"layers,omitempty"`
	Total     int `json:"total,omitempty"`
}

func (s *Service) fill(_ context.Context, req *protocol.Request) (outcome, error) {
	b := req.Params.Bounds
	if b == nil {
		return outcome{}, fault.Validationf("fill", "bounds are required")
	}
	units, err := generate.Fill(generate.Bounds{Min: b.Min, Max: b.Max}, req.Params.Archetype, req.Params.Color, s.tune.Limits.MaxUnits)
	if err != nil {
		return outcome{}, err
	}
	return outcome{units: units, result: generatedResult{Generated: len(units)}}, nil
}

func (s *Service) array(_ context.Context, req *protocol.Request) (outcome, error) {
	if len(req.Units) == 0 {
		return outcome{}, fault.Validationf("array", "a base unit is required")
	}
	c := req.Params.Counts
	if c == nil {
		return outcome{}, fault.Validationf("array", "counts are required")
	}
	units, err := generate.Array(req.Units[0], generate.Counts{X: c.X, Y: c.Y, Z: c.Z}, req.Params.Spacing, s.tune.Limits.MaxUnits)
	if err != nil {
		return outcome{}, err
	}
	return outcome{units: units, result: generatedResult{Generated: len(units)}}, nil
}

func (s *Service) roof(_ context.Context, req *protocol.Request) (outcome, error) {
	if len(req.Units) == 0 {
		return outcome{}, fault.Validationf("roof", "no units to roof")
	}
	roof, layers, err := generate.Roof(req.Units, req.Params.Archetype, req.Params.Color, s.tune.Limits.MaxUnits)
	if err != nil {
		return outcome{}, err
	}
	units := make([]lattice.Unit, 0, len(req.Units)+len(roof))
	units = append(append(units, req.Units...), roof...)
	return outcome{units: units, result: generatedResult{Generated: len(roof), Layers: layers, Total: len(units)}}, nil
}

func (s *Service) instructions(_ context.Context, req *protocol.Request) (outcome, error) {
	ins, err := plan.BuildInstructions(req.Name, req.Units, s.cat)
	if err != nil {
		return outcome{}, err
	}
	return outcome{result: ins}, nil
}

type buildOrderResult struct {
	Style plan.Style `json:"style"`
	Order []int      `json:"order"`
}

func (s *Service) buildOrder(_ context.Context, req *protocol.Request) (outcome, error) {
	style, err := plan.ParseStyle(req.Params.Style)
	if err != nil {
		return outcome{}, fault.Validationf("build_order", "%v", err)
	}
	order, err := plan.BuildOrder(req.Units, style, s.rng(req.Params.Seed))
	if err != nil {
		return outcome{}, err
	}
	units := make([]lattice.Unit, len(order))
	for i, idx := range order {
		units[i] = req.Units[idx]
	}
	return outcome{units: units, result: buildOrderResult{Style: style, Order: order}}, nil
}

func (s *Service) importLDraw(_ context.Context, req *protocol.Request) (outcome, error) {
	res, err := ldraw.ParseString(req.Params.Content, ldraw.Options{
		DefaultColor: req.Params.Color,
		Limit:        s.tune.Limits.MaxUnits,
	})
	if err != nil {
		return outcome{}, err
	}
	units := res.Units
	res.Units = nil
	return outcome{units: units, result: res}, nil
}

func (s *Service) export(ctx context.Context, req *protocol.Request) (outcome, error) {
	if s.exporter == nil {
		return outcome{}, fault.Unsupportedf("export", "no exporter configured")
	}
	format, err := export.ParseFormat(req.Params.Format)
	if err != nil {
		return outcome{}, fault.Validationf("export", "%v", err)
	}
	precision, err := stl.ParsePrecision(req.Params.Precision)
	if err != nil {
		return outcome{}, fault.Validationf("export", "%v", err)
	}
	if req.Params.Precision == "" && s.tune.Export.ReadableSTL {
		precision = stl.PrecisionReadable
	}

	res, err := s.exporter.Export(ctx, export.Request{
		Name:      req.Name,
		Units:     req.Units,
		Format:    format,
		Precision: precision,
	})
	if err != nil {
		return outcome{}, err
	}
	s.metrics.exports.WithLabelValues(string(res.Format), boolLabel(res.Degraded)).Inc()
	s.metrics.exportBytes.Add(float64(res.Bytes))
	s.metrics.triangles.Observe(float64(res.Triangles))
	return outcome{result: ExportRef(res)}, nil
}

// ExportRef converts an export result to its protocol form.
func ExportRef(r export.Result) protocol.ExportRef {
	return protocol.ExportRef{
		ID:        r.ID,
		File:      r.File,
		Format:    string(r.Format),
		Vertices:  r.Vertices,
		Triangles: r.Triangles,
		Bytes:     r.Bytes,
		Degraded:  r.Degraded,
		Reason:    r.Reason,
		Download:  "/v1/exports/" + r.ID,
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
