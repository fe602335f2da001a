package mesh

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
)

func newSynth() *Synthesizer {
	return NewSynthesizer(catalogs.Default(), tuning.Defaults().Lattice)
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestSynthesize_BrickCounts(t *testing.T) {
	cases := []struct {
		archetype string
		verts     int
		tris      int
	}{
		{"1x1", 26, 44},
		{"2x4", 152, 268},
		{"1x1_round", PrismVertices(16) + PrismVertices(8), PrismTriangles(16) + PrismTriangles(8)},
		{"1x1_cone", ConeVertices(16), ConeTriangles(16)},
		{"2x2_slope", HexVertices + 2*PrismVertices(8), HexTriangles + 2*PrismTriangles(8)},
		{"2x2_dome", HexVertices, HexTriangles},
	}
	for _, c := range cases {
		buf, err := newSynth().Synthesize(context.Background(), []lattice.Unit{{Archetype: c.archetype}})
		if err != nil {
			t.Fatalf("%s: Synthesize: %v", c.archetype, err)
		}
		if len(buf.Vertices) != c.verts || len(buf.Triangles) != c.tris {
			t.Fatalf("%s: got %d v / %d t, want %d / %d", c.archetype, len(buf.Vertices), len(buf.Triangles), c.verts, c.tris)
		}
		if err := buf.Validate(); err != nil {
			t.Fatalf("%s: %v", c.archetype, err)
		}
		if buf.SignedVolume() <= 0 {
			t.Fatalf("%s: signed volume %v not positive", c.archetype, buf.SignedVolume())
		}
	}
}

func TestSynthesize_OffsetsFollowInputOrder(t *testing.T) {
	units := []lattice.Unit{{Archetype: "1x1"}, {Archetype: "2x4", X: 5}, {Archetype: "1x1", Z: 2}}
	buf, err := newSynth().Synthesize(context.Background(), units)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(buf.Vertices) != 26+152+26 || len(buf.Triangles) != 44+268+44 {
		t.Fatalf("counts %d/%d", len(buf.Vertices), len(buf.Triangles))
	}
	if err := buf.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	// The second unit's first triangle starts after the first unit's vertices.
	if first := buf.Triangles[44]; first[0] < 26 || first[1] < 26 || first[2] < 26 {
		t.Fatalf("triangle 44=%v not offset", first)
	}
	if v := buf.Vertices[26]; !near(v[0], 40) || !near(v[1], 0) {
		t.Fatalf("second unit origin=%v", v)
	}
	if v := buf.Vertices[26+152]; !near(v[2], 2*9.6) {
		t.Fatalf("third unit origin=%v", v)
	}
}

func TestSynthesize_PlacementAndRotation(t *testing.T) {
	buf, err := newSynth().Synthesize(context.Background(), []lattice.Unit{{Archetype: "2x4", X: 1, Y: 2, Z: 3}})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	min, max := buf.Bounds()
	wantMin := mgl64.Vec3{8, 16, 3 * 9.6}
	wantMax := mgl64.Vec3{24, 48, 4*9.6 + 1.7}
	if !min.ApproxEqualThreshold(wantMin, 1e-9) || !max.ApproxEqualThreshold(wantMax, 1e-9) {
		t.Fatalf("bounds=%v..%v want %v..%v", min, max, wantMin, wantMax)
	}

	if _, err := newSynth().Synthesize(context.Background(), []lattice.Unit{{Archetype: "2x4", Rotation: 45}}); !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("rotation 45: err=%v want validation error", err)
	}
	for _, rot := range []int{1, 3, 270} {
		buf, err := newSynth().Synthesize(context.Background(), []lattice.Unit{{Archetype: "2x4", Rotation: rot}})
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		min, max := buf.Bounds()
		if !near(min[0], 0) || !near(min[1], 0) || !near(max[0], 32) || !near(max[1], 16) {
			t.Fatalf("rot %d: bounds=%v..%v", rot, min, max)
		}
		if buf.SignedVolume() <= 0 {
			t.Fatalf("rot %d: winding flipped", rot)
		}
	}
}

func TestSynthesize_VolumeOfBrick(t *testing.T) {
	buf, err := newSynth().Synthesize(context.Background(), []lattice.Unit{{Archetype: "2x4"}})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	body := 16.0 * 32 * 9.6
	studCap := 8 * math.Pi * 2.4 * 2.4 * 1.7
	if v := buf.SignedVolume(); v <= body || v >= body+studCap {
		t.Fatalf("volume=%v want in (%v, %v)", v, body, body+studCap)
	}
}

func TestPrimitives_OutwardWinding(t *testing.T) {
	for rot := 0; rot < 4; rot++ {
		f := frame{origin: mgl64.Vec3{3, -2, 1}, w: 16, d: 24, rot: rot}
		prims := map[string]func(*Buffer){
			"box":   func(b *Buffer) { addBox(b, f, 0, 0, 0, 16, 24, 9.6) },
			"slope": func(b *Buffer) { addSlope(b, f, 16, 24, 9.6, 8) },
			"prism": func(b *Buffer) { addPrism(b, f, 8, 12, 0, 4, 9.6, 16) },
			"stud":  func(b *Buffer) { addPrism(b, f, 4, 4, 9.6, 2.4, 1.7, 8) },
			"cone":  func(b *Buffer) { addCone(b, f, 8, 12, 0, 8, 9.6, 16) },
		}
		for name, add := range prims {
			var b Buffer
			add(&b)
			if b.SignedVolume() <= 0 {
				t.Fatalf("rot %d %s: signed volume %v", rot, name, b.SignedVolume())
			}
			if err := b.Validate(); err != nil {
				t.Fatalf("rot %d %s: %v", rot, name, err)
			}
		}
	}
}

func TestSynthesize_Errors(t *testing.T) {
	_, err := newSynth().Synthesize(context.Background(), nil)
	if !errors.Is(err, fault.ErrGeometry) {
		t.Fatalf("empty: err=%v", err)
	}
	_, err = newSynth().Synthesize(context.Background(), []lattice.Unit{{Archetype: "nope"}})
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("unknown: err=%v", err)
	}
	_, err = newSynth().WithLimit(1).Synthesize(context.Background(), []lattice.Unit{{Archetype: "1x1"}, {Archetype: "1x1"}})
	if !errors.Is(err, fault.ErrValidation) {
		t.Fatalf("over limit: err=%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := newSynth().Synthesize(ctx, []lattice.Unit{{Archetype: "1x1"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("canceled: err=%v", err)
	}
}

func TestBoxes_OmitsStuds(t *testing.T) {
	buf, err := newSynth().Boxes(context.Background(), []lattice.Unit{{Archetype: "2x4"}, {Archetype: "1x1_cone", X: 4}})
	if err != nil {
		t.Fatalf("Boxes: %v", err)
	}
	if len(buf.Vertices) != 2*HexVertices || len(buf.Triangles) != 2*HexTriangles {
		t.Fatalf("counts %d/%d", len(buf.Vertices), len(buf.Triangles))
	}
}

func TestBuffer_NormalAndValidate(t *testing.T) {
	var b Buffer
	b.AddVertex(mgl64.Vec3{0, 0, 0})
	b.AddVertex(mgl64.Vec3{1, 0, 0})
	b.AddVertex(mgl64.Vec3{0, 1, 0})
	b.AddTriangle(0, 0, 1, 2)
	if n := b.Normal(0); !n.ApproxEqual(mgl64.Vec3{0, 0, 1}) {
		t.Fatalf("normal=%v", n)
	}
	b.AddTriangle(0, 0, 0, 0)
	if n := b.Normal(1); n != (mgl64.Vec3{}) {
		t.Fatalf("degenerate normal=%v", n)
	}
	b.AddTriangle(0, 0, 1, 3)
	if err := b.Validate(); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}
