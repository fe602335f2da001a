package mesh

import (
	"context"
	"math"
	"runtime"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
)

type Synthesizer struct {
	cat   *catalogs.Catalogs
	lat   tuning.Lattice
	limit int
}

func NewSynthesizer(cat *catalogs.Catalogs, lat tuning.Lattice) *Synthesizer {
	return &Synthesizer{cat: cat, lat: lat, limit: lattice.MaxUnits}
}

// WithLimit returns a copy of s that refuses more than n units.
func (s *Synthesizer) WithLimit(n int) *Synthesizer {
	c := *s
	if n > 0 {
		c.limit = n
	}
	return &c
}

type placed struct {
	unit lattice.Unit
	arch catalogs.Archetype
}

// resolve validates the unit list before any geometry is produced.
func (s *Synthesizer) resolve(op string, units []lattice.Unit) ([]placed, error) {
	if len(units) == 0 {
		return nil, fault.Geometryf(op, "no geometry")
	}
	if len(units) > s.limit {
		return nil, fault.Validationf(op, "%d units exceeds the safety limit of %d", len(units), s.limit)
	}
	if err := lattice.CheckUnits(op, units); err != nil {
		return nil, err
	}
	out := make([]placed, len(units))
	for i, u := range units {
		a, ok := s.cat.Archetype(u.Archetype)
		if !ok {
			return nil, fault.Validationf(op, "unit %d: unknown archetype %q", i, u.Archetype)
		}
		out[i] = placed{unit: u, arch: a}
	}
	return out, nil
}

// Synthesize converts units into one buffer, in input order. Units are
// converted in parallel and merged with a prefix sum over their vertex counts.
func (s *Synthesizer) Synthesize(ctx context.Context, units []lattice.Unit) (*Buffer, error) {
	ps, err := s.resolve("synthesize", units)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, ps, s.unitMesh)
}

// Boxes builds the degraded mesh: one hexahedron per unit, no studs and no
// shaped solids.
func (s *Synthesizer) Boxes(ctx context.Context, units []lattice.Unit) (*Buffer, error) {
	ps, err := s.resolve("boxes", units)
	if err != nil {
		return nil, err
	}
	return s.build(ctx, ps, func(b *Buffer, p placed) {
		f, w, d, h := s.frameOf(p)
		addBox(b, f, 0, 0, 0, w, d, h)
	})
}

func (s *Synthesizer) build(ctx context.Context, ps []placed, emit func(*Buffer, placed)) (*Buffer, error) {
	parts := make([]Buffer, len(ps))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range ps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			emit(&parts[i], ps[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Prefix sums give each part its global index offset.
	vOff := make([]int, len(parts)+1)
	tOff := make([]int, len(parts)+1)
	for i := range parts {
		vOff[i+1] = vOff[i] + len(parts[i].Vertices)
		tOff[i+1] = tOff[i] + len(parts[i].Triangles)
	}
	out := &Buffer{
		Vertices:  make([]mgl64.Vec3, 0, vOff[len(parts)]),
		Triangles: make([][3]uint32, 0, tOff[len(parts)]),
	}
	for i := range parts {
		out.appendShifted(&parts[i])
	}
	if out.Empty() {
		return nil, fault.Geometryf("synthesize", "no geometry")
	}
	return out, nil
}

// frameOf returns the unit's placement frame and its scaled local extents.
func (s *Synthesizer) frameOf(p placed) (frame, float64, float64, float64) {
	u, a := p.unit, p.arch
	sc := u.EffectiveScale()
	w := float64(a.Width) * s.lat.PlanarMM * sc
	d := float64(a.Depth) * s.lat.PlanarMM * sc
	h := a.Height * s.lat.VerticalMM * sc
	f := frame{
		origin: mgl64.Vec3{float64(u.X) * s.lat.PlanarMM, float64(u.Y) * s.lat.PlanarMM, float64(u.Z) * s.lat.VerticalMM},
		w:      w,
		d:      d,
		rot:    u.QuarterTurns(),
	}
	return f, w, d, h
}

func (s *Synthesizer) unitMesh(b *Buffer, p placed) {
	f, w, d, h := s.frameOf(p)
	sc := p.unit.EffectiveScale()
	step := s.lat.PlanarMM * sc
	studR := s.lat.StudDiameterMM / 2 * sc
	studH := s.lat.StudHeightMM * sc

	switch p.arch.Shape {
	case catalogs.ShapeBox:
		addBox(b, f, 0, 0, 0, w, d, h)
	case catalogs.ShapeSlope:
		addSlope(b, f, w, d, h, float64(p.arch.FlatRows())*step)
	case catalogs.ShapeCylinder:
		addPrism(b, f, w/2, d/2, 0, math.Min(w, d)/2, h, s.lat.RoundSides)
	case catalogs.ShapeCone:
		addCone(b, f, w/2, d/2, 0, math.Min(w, d)/2, h, s.lat.RoundSides)
	default:
		// Domes and unknown kinds use their bounding box.
		addBox(b, f, 0, 0, 0, w, d, h)
	}
	for _, c := range p.arch.StudCenters() {
		addPrism(b, f, c[0]*step, c[1]*step, h, studR, studH, s.lat.StudSides)
	}
}
