// Package mesh builds triangle soups from placed units.
package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// Buffer is an append-only triangle soup. Every triangle index refers to a
// vertex in the same buffer and triangles wind counter-clockwise seen from
// outside. Vertices are never welded.
type Buffer struct {
	Vertices  []mgl64.Vec3
	Triangles [][3]uint32
}

func (b *Buffer) Empty() bool {
	return b == nil || len(b.Triangles) == 0
}

// Base is the index the next appended vertex will get.
func (b *Buffer) Base() uint32 { return uint32(len(b.Vertices)) }

func (b *Buffer) AddVertex(v mgl64.Vec3) uint32 {
	b.Vertices = append(b.Vertices, v)
	return uint32(len(b.Vertices) - 1)
}

// AddTriangle appends a triangle whose indices are relative to base.
func (b *Buffer) AddTriangle(base, i, j, k uint32) {
	b.Triangles = append(b.Triangles, [3]uint32{base + i, base + j, base + k})
}

// Triangle returns the three corners of triangle t.
func (b *Buffer) Triangle(t int) (mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) {
	tri := b.Triangles[t]
	return b.Vertices[tri[0]], b.Vertices[tri[1]], b.Vertices[tri[2]]
}

// Normal returns the unit facet normal of triangle t, or the zero vector for a
// degenerate triangle.
func (b *Buffer) Normal(t int) mgl64.Vec3 {
	v0, v1, v2 := b.Triangle(t)
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	if l := n.Len(); l > 0 {
		return n.Mul(1 / l)
	}
	return mgl64.Vec3{}
}

// SignedVolume is positive for a closed mesh with outward winding.
func (b *Buffer) SignedVolume() float64 {
	var vol float64
	for t := range b.Triangles {
		v0, v1, v2 := b.Triangle(t)
		vol += v0.Dot(v1.Cross(v2))
	}
	return vol / 6
}

// Bounds returns the axis-aligned extent of all vertices.
func (b *Buffer) Bounds() (min, max mgl64.Vec3) {
	if len(b.Vertices) == 0 {
		return min, max
	}
	min, max = b.Vertices[0], b.Vertices[0]
	for _, v := range b.Vertices[1:] {
		for a := 0; a < 3; a++ {
			if v[a] < min[a] {
				min[a] = v[a]
			}
			if v[a] > max[a] {
				max[a] = v[a]
			}
		}
	}
	return min, max
}

// Validate checks the index invariant.
func (b *Buffer) Validate() error {
	n := uint32(len(b.Vertices))
	for t, tri := range b.Triangles {
		for _, i := range tri {
			if i >= n {
				return fmt.Errorf("triangle %d: index %d out of range (%d vertices)", t, i, n)
			}
		}
	}
	return nil
}

// appendShifted copies o onto the end of b, shifting o's indices by b's
// current vertex count.
func (b *Buffer) appendShifted(o *Buffer) {
	base := b.Base()
	b.Vertices = append(b.Vertices, o.Vertices...)
	for _, tri := range o.Triangles {
		b.Triangles = append(b.Triangles, [3]uint32{tri[0] + base, tri[1] + base, tri[2] + base})
	}
}
