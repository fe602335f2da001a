package mesh

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"brickforge.ai/internal/lattice"
)

// frame maps a unit's local footprint coordinates (millimeters, origin at the
// footprint's min corner, before rotation) to world space. The footprint turns
// about its own center and the rotated footprint's min corner lands on origin.
type frame struct {
	origin mgl64.Vec3
	w, d   float64
	rot    int
}

func (f frame) point(x, y, z float64) mgl64.Vec3 {
	if f.rot == 0 {
		return mgl64.Vec3{f.origin[0] + x, f.origin[1] + y, f.origin[2] + z}
	}
	rx, ry := lattice.RotateXY(x-f.w/2, y-f.d/2, f.rot)
	rw, rd := lattice.Footprint(f.w, f.d, f.rot)
	return mgl64.Vec3{f.origin[0] + rx + rw/2, f.origin[1] + ry + rd/2, f.origin[2] + z}
}

// Counts per primitive.
const (
	HexVertices  = 8
	HexTriangles = 12
)

func PrismVertices(sides int) int  { return 2*sides + 2 }
func PrismTriangles(sides int) int { return 4 * sides }
func ConeVertices(sides int) int   { return sides + 2 }
func ConeTriangles(sides int) int  { return 2 * sides }

// hexFaces winds each face outward for the corner order
// 0..3 = bottom (x0y0, x1y0, x1y1, x0y1), 4..7 = the same corners on top.
var hexFaces = [12][3]uint32{
	{0, 2, 1}, {0, 3, 2}, // bottom
	{4, 5, 6}, {4, 6, 7}, // top
	{0, 1, 5}, {0, 5, 4}, // front (y0)
	{2, 3, 7}, {2, 7, 6}, // back (y1)
	{0, 4, 7}, {0, 7, 3}, // left (x0)
	{1, 2, 6}, {1, 6, 5}, // right (x1)
}

// addHex appends a hexahedron given its eight corners in hexFaces order.
func addHex(b *Buffer, corners [8]mgl64.Vec3) {
	base := b.Base()
	for _, c := range corners {
		b.AddVertex(c)
	}
	for _, f := range hexFaces {
		b.AddTriangle(base, f[0], f[1], f[2])
	}
}

// addBox appends the box [x0,x0+w]×[y0,y0+d]×[z0,z0+h] in frame f.
func addBox(b *Buffer, f frame, x0, y0, z0, w, d, h float64) {
	x1, y1, z1 := x0+w, y0+d, z0+h
	addHex(b, [8]mgl64.Vec3{
		f.point(x0, y0, z0), f.point(x1, y0, z0), f.point(x1, y1, z0), f.point(x0, y1, z0),
		f.point(x0, y0, z1), f.point(x1, y0, z1), f.point(x1, y1, z1), f.point(x0, y1, z1),
	})
}

// addSlope appends a wedge over [0,w]×[0,d] whose top is only run deep; the
// back face slopes from the top edge at y=run down to y=d.
func addSlope(b *Buffer, f frame, w, d, h, run float64) {
	run = math.Min(run, d)
	addHex(b, [8]mgl64.Vec3{
		f.point(0, 0, 0), f.point(w, 0, 0), f.point(w, d, 0), f.point(0, d, 0),
		f.point(0, 0, h), f.point(w, 0, h), f.point(w, run, h), f.point(0, run, h),
	})
}

// addPrism appends a capped n-sided cylinder standing on z0 around (cx,cy).
// Vertices: bottom ring 0..n-1, top ring n..2n-1, bottom pole 2n, top pole 2n+1.
func addPrism(b *Buffer, f frame, cx, cy, z0, r, h float64, n int) {
	base := b.Base()
	for _, z := range [2]float64{z0, z0 + h} {
		for i := 0; i < n; i++ {
			a := 2 * math.Pi * float64(i) / float64(n)
			b.AddVertex(f.point(cx+r*math.Cos(a), cy+r*math.Sin(a), z))
		}
	}
	b.AddVertex(f.point(cx, cy, z0))
	b.AddVertex(f.point(cx, cy, z0+h))

	un := uint32(n)
	bottom, top := 2*un, 2*un+1
	for i := uint32(0); i < un; i++ {
		ni := (i + 1) % un
		b.AddTriangle(base, i, ni, ni+un)
		b.AddTriangle(base, i, ni+un, i+un)
	}
	for i := uint32(0); i < un; i++ {
		ni := (i + 1) % un
		b.AddTriangle(base, bottom, ni, i)
		b.AddTriangle(base, top, i+un, ni+un)
	}
}

// addCone appends an n-sided cone with a capped base on z0 and its apex at z0+h.
// Vertices: ring 0..n-1, base pole n, apex n+1.
func addCone(b *Buffer, f frame, cx, cy, z0, r, h float64, n int) {
	base := b.Base()
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		b.AddVertex(f.point(cx+r*math.Cos(a), cy+r*math.Sin(a), z0))
	}
	b.AddVertex(f.point(cx, cy, z0))
	b.AddVertex(f.point(cx, cy, z0+h))

	un := uint32(n)
	pole, apex := un, un+1
	for i := uint32(0); i < un; i++ {
		ni := (i + 1) % un
		b.AddTriangle(base, i, ni, apex)
		b.AddTriangle(base, pole, ni, i)
	}
}
