package engine

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"brickforge.ai/internal/export"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/analysis"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/mesh"
	"brickforge.ai/internal/persistence/indexdb"
	"brickforge.ai/internal/persistence/journal"
	"brickforge.ai/internal/protocol"
)

type captureSink struct {
	mu      sync.Mutex
	entries []journal.RequestEntry
}

func (c *captureSink) WriteRequest(e journal.RequestEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

type testEnv struct {
	svc  *Service
	reg  *prometheus.Registry
	sink *captureSink
}

func newTestService(t *testing.T) *testEnv {
	t.Helper()
	cats := catalogs.Default()
	tune := tuning.Defaults()
	synth := mesh.NewSynthesizer(cats, tune.Lattice)
	idx := indexdb.NewMemory()
	ex := export.New(export.Options{
		Dir:      filepath.Join(t.TempDir(), "exports"),
		Geometry: synth,
		Fallback: synth,
		Index:    idx,
	})
	sink := &captureSink{}
	reg := prometheus.NewRegistry()
	s := New(Options{
		Catalogs: cats,
		Tuning:   tune,
		Exporter: ex,
		Store:    idx,
		Requests: []RequestSink{sink},
		Registry: reg,
		Seed:     func() int64 { return 7 },
	})
	return &testEnv{svc: s, reg: reg, sink: sink}
}

// counterValue reads one labeled counter from the registry.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if labels[lp.GetName()] != lp.GetValue() {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func scene() []lattice.Unit {
	return []lattice.Unit{
		{ID: "a", Archetype: "2x4", X: 0, Y: 0, Z: 0, Color: "red"},
		{ID: "b", Archetype: "2x2", X: 0, Y: 0, Z: 1, Color: "blue"},
		{ID: "c", Archetype: "1x1", X: 1, Y: 1, Z: 2, Color: "red"},
	}
}

func ptr[T any](v T) *T { return &v }

func TestHandle_EveryTypeSucceeds(t *testing.T) {
	env := newTestService(t)
	s, sink := env.svc, env.sink
	cases := []protocol.Request{
		{Type: protocol.TypeAnalyze, Units: scene()},
		{Type: protocol.TypeCheck, Units: scene()},
		{Type: protocol.TypeStructure, Units: scene()},
		{Type: protocol.TypeSymmetry, Units: scene(), Params: protocol.Params{Axis: "y"}},
		{Type: protocol.TypeHollow, Units: scene()},
		{Type: protocol.TypeMeasure, Units: scene()},
		{Type: protocol.TypeRotate, Units: scene(), Params: protocol.Params{Angle: 90}},
		{Type: protocol.TypeScale, Units: scene(), Params: protocol.Params{ScaleFactor: 2}},
		{Type: protocol.TypeMirror, Units: scene(), Params: protocol.Params{Axis: "x", Center: ptr(4), Combine: true}},
		{Type: protocol.TypeExplode, Units: scene()},
		{Type: protocol.TypeRecolor, Units: scene(), Params: protocol.Params{OldColor: "RED", NewColor: "green"}},
		{Type: protocol.TypeRandomizeColors, Units: scene(), Params: protocol.Params{Seed: ptr(int64(1))}},
		{Type: protocol.TypeFill, Params: protocol.Params{Bounds: &protocol.BoundsParam{Min: [3]int{0, 0, 0}, Max: [3]int{1, 1, 1}}}},
		{Type: protocol.TypeArray, Units: scene()[:1], Params: protocol.Params{Counts: &protocol.CountsParam{X: 2, Y: 1, Z: 1}, Spacing: 2}},
		{Type: protocol.TypeRoof, Units: scene()},
		{Type: protocol.TypeInstructions, Name: "tower", Units: scene()},
		{Type: protocol.TypeBuildOrder, Units: scene(), Params: protocol.Params{Style: "explode"}},
		{Type: protocol.TypeImportLDraw, Params: protocol.Params{Content: "1 4 0 0 0 1 0 0 0 1 0 0 0 1 3001.dat\n"}},
		{Type: protocol.TypeExport, Name: "tower", Units: scene(), Params: protocol.Params{Format: "stl_binary"}},
	}
	if len(cases) != len(protocol.RequestTypes) {
		t.Fatalf("cases=%d types=%d", len(cases), len(protocol.RequestTypes))
	}
	for i, req := range cases {
		req.RequestID = req.Type
		resp := s.Handle(context.Background(), req)
		if !resp.OK {
			t.Fatalf("case %d %s failed: %s %s", i, req.Type, resp.Code, resp.Error)
		}
		if resp.Type != protocol.TypeResult || resp.For != req.Type || resp.RequestID != req.Type {
			t.Fatalf("%s envelope=%+v", req.Type, resp)
		}
	}
	if len(sink.entries) != len(cases) {
		t.Fatalf("journal entries=%d want %d", len(sink.entries), len(cases))
	}
	if got := counterValue(t, env.reg, "brickforge_requests_total", map[string]string{"type": protocol.TypeAnalyze, "code": "OK"}); got != 1 {
		t.Fatalf("analyze counter=%v", got)
	}
	if got := counterValue(t, env.reg, "brickforge_exports_total", map[string]string{"format": "stl_binary", "degraded": "false"}); got != 1 {
		t.Fatalf("exports counter=%v", got)
	}
}

func TestHandle_ErrorCodes(t *testing.T) {
	env := newTestService(t)
	s, sink := env.svc, env.sink
	cases := []struct {
		req  protocol.Request
		code string
	}{
		{req: protocol.Request{Type: "TELEPORT"}, code: protocol.ErrBadRequest},
		{req: protocol.Request{Type: protocol.TypeRotate, Units: scene(), Params: protocol.Params{Angle: 45}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeScale, Units: scene(), Params: protocol.Params{ScaleFactor: 1.5}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeAnalyze, Units: scene(), Params: protocol.Params{SupportMode: "loose"}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeFill, Params: protocol.Params{Bounds: &protocol.BoundsParam{Max: [3]int{100, 100, 100}}}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeStructure}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeExport, Name: "empty"}, code: protocol.ErrGeometry},
		{req: protocol.Request{Type: protocol.TypeExport, Units: scene(), Params: protocol.Params{Format: "obj"}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeExport, Units: []lattice.Unit{{Archetype: "9x9"}}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeImportLDraw}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeAnalyze, Units: []lattice.Unit{{Archetype: "2x4", Rotation: 45}}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeExport, Units: []lattice.Unit{{Archetype: "2x4", Rotation: 30}}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeFill, Params: protocol.Params{Bounds: &protocol.BoundsParam{Min: [3]int{math.MinInt, 0, 0}, Max: [3]int{math.MaxInt, 0, 0}}}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeRoof, Units: []lattice.Unit{{Archetype: "1x1", X: math.MaxInt}}}, code: protocol.ErrValidation},
		{req: protocol.Request{Type: protocol.TypeScale, Units: []lattice.Unit{{Archetype: "1x1", X: lattice.MaxCoord}, {Archetype: "1x1", X: -lattice.MaxCoord}}, Params: protocol.Params{ScaleFactor: 3}}, code: protocol.ErrValidation},
	}
	for _, c := range cases {
		resp := s.Handle(context.Background(), c.req)
		if resp.OK || resp.Code != c.code {
			t.Fatalf("%s: ok=%v code=%q err=%q want %s", c.req.Type, resp.OK, resp.Code, resp.Error, c.code)
		}
	}
	for _, e := range sink.entries {
		if e.OK || e.Code == "" {
			t.Fatalf("journal entry should record failure: %+v", e)
		}
	}
	if got := counterValue(t, env.reg, "brickforge_requests_total", map[string]string{"type": "unknown", "code": protocol.ErrBadRequest}); got != 1 {
		t.Fatalf("unknown counter=%v", got)
	}
}

func TestHandle_OverLimitRejectedBeforeWork(t *testing.T) {
	s := newTestService(t).svc
	units := make([]lattice.Unit, lattice.MaxUnits+1)
	for i := range units {
		units[i] = lattice.Unit{Archetype: "1x1", X: i}
	}
	resp := s.Handle(context.Background(), protocol.Request{Type: protocol.TypeAnalyze, Units: units})
	if resp.Code != protocol.ErrValidation {
		t.Fatalf("code=%q", resp.Code)
	}
}

func TestHandle_ExportIsRetrievable(t *testing.T) {
	s := newTestService(t).svc
	ctx := context.Background()
	resp := s.Handle(ctx, protocol.Request{Type: protocol.TypeExport, Name: "tower", Units: scene(), Params: protocol.Params{Format: "3mf"}})
	if !resp.OK {
		t.Fatalf("export failed: %s", resp.Error)
	}
	ref, ok := resp.Result.(protocol.ExportRef)
	if !ok {
		t.Fatalf("result type %T", resp.Result)
	}
	if ref.Download != "/v1/exports/"+ref.ID || ref.Format != "3mf" || ref.Triangles == 0 {
		t.Fatalf("ref=%+v", ref)
	}
	got, err := s.Lookup(ctx, ref.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got.File != ref.File || got.Bytes != ref.Bytes {
		t.Fatalf("lookup=%+v ref=%+v", got, ref)
	}
	list, err := s.ListExports(ctx, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("list=%v err=%v", list, err)
	}
}

func TestHandle_CheckReportsOverlap(t *testing.T) {
	s := newTestService(t).svc
	units := append(scene(), lattice.Unit{Archetype: "1x1", X: 0, Y: 0, Z: 0})
	resp := s.Handle(context.Background(), protocol.Request{Type: protocol.TypeCheck, Units: units})
	res, ok := resp.Result.(checkResult)
	if !resp.OK || !ok {
		t.Fatalf("resp=%+v", resp)
	}
	if res.Valid || res.Overlaps != 1 {
		t.Fatalf("check=%+v", res)
	}
	fs := resp.Findings.([]analysis.Finding)
	if fs[0].Category != analysis.CategoryOverlap || fs[0].Units[0] != 0 || fs[0].Units[1] != 3 {
		t.Fatalf("finding=%+v", fs[0])
	}
}

func TestHandle_BuildOrderReordersUnits(t *testing.T) {
	s := newTestService(t).svc
	resp := s.Handle(context.Background(), protocol.Request{Type: protocol.TypeBuildOrder, Units: scene(), Params: protocol.Params{Style: "explode"}})
	if !resp.OK {
		t.Fatalf("err=%s", resp.Error)
	}
	res := resp.Result.(buildOrderResult)
	for i, idx := range res.Order {
		if resp.Units[i].ID != scene()[idx].ID {
			t.Fatalf("units not in build order")
		}
	}
	if resp.Units[0].Z != 2 {
		t.Fatalf("explode order should start from the top, got z=%d", resp.Units[0].Z)
	}
}

func TestHandle_RoofKeepsInputUnits(t *testing.T) {
	s := newTestService(t).svc
	walls := []lattice.Unit{
		{ID: "w1", Archetype: "1x1", X: 0, Y: 0, Z: 0},
		{ID: "w2", Archetype: "1x1", X: 1, Y: 0, Z: 0},
	}
	resp := s.Handle(context.Background(), protocol.Request{Type: protocol.TypeRoof, Units: walls})
	if !resp.OK {
		t.Fatalf("roof failed: %s %s", resp.Code, resp.Error)
	}
	res := resp.Result.(generatedResult)
	if res.Generated != 2 || res.Layers != 1 || res.Total != 4 || len(resp.Units) != 4 {
		t.Fatalf("result=%+v units=%d", res, len(resp.Units))
	}
	if resp.Units[0].ID != "w1" || resp.Units[1].ID != "w2" || resp.Units[2].Z != 1 || resp.Units[3].Z != 1 {
		t.Fatalf("units=%+v", resp.Units)
	}
}

func TestHandle_CheckFloatingUnitIsInvalid(t *testing.T) {
	s := newTestService(t).svc
	units := []lattice.Unit{
		{Archetype: "2x2", X: 0, Y: 0, Z: 0},
		{Archetype: "1x1", X: 5, Y: 5, Z: 3},
	}
	resp := s.Handle(context.Background(), protocol.Request{Type: protocol.TypeCheck, Units: units})
	res, ok := resp.Result.(checkResult)
	if !resp.OK || !ok {
		t.Fatalf("resp=%+v", resp)
	}
	if res.Valid || res.Overlaps != 0 || res.Floating != 1 {
		t.Fatalf("check=%+v", res)
	}

	resp = s.Handle(context.Background(), protocol.Request{Type: protocol.TypeCheck, Units: units[:1]})
	if res := resp.Result.(checkResult); !res.Valid {
		t.Fatalf("grounded unit should be valid: %+v", res)
	}
}
