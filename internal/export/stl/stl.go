// Package stl reads and writes triangle-soup files in the ASCII and binary
// STL layouts.
package stl

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/mesh"
)

const (
	headerSize = 80
	facetSize  = 50
	// DefaultName is used when a solid has no usable name.
	DefaultName = "brickforge"
)

// Precision selects how ASCII coordinates are printed.
type Precision int

const (
	// PrecisionFull prints the shortest text that parses back to the same float64.
	PrecisionFull Precision = iota
	// PrecisionReadable prints six fixed decimals.
	PrecisionReadable
)

func ParsePrecision(s string) (Precision, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "full":
		return PrecisionFull, nil
	case "readable":
		return PrecisionReadable, nil
	default:
		return 0, fmt.Errorf("precision must be 'full' or 'readable'; got %q", s)
	}
}

func (p Precision) format(v float64) string {
	if p == PrecisionReadable {
		return strconv.FormatFloat(v, 'f', 6, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SolidName reduces name to a single token usable after "solid".
func SolidName(name string) string {
	name = strings.Join(strings.Fields(name), "_")
	if name == "" {
		return DefaultName
	}
	return name
}

// EncodeASCII writes buf as an ASCII STL solid. Nothing is written for an
// empty buffer.
func EncodeASCII(w io.Writer, name string, buf *mesh.Buffer, p Precision) error {
	if buf.Empty() {
		return fault.Geometryf("stl", "no geometry")
	}
	name = SolidName(name)
	bw := bufio.NewWriter(w)
	vec := func(v mgl64.Vec3) string {
		return p.format(v[0]) + " " + p.format(v[1]) + " " + p.format(v[2])
	}
	fmt.Fprintf(bw, "solid %s\n", name)
	for t := range buf.Triangles {
		v0, v1, v2 := buf.Triangle(t)
		fmt.Fprintf(bw, "  facet normal %s\n", vec(buf.Normal(t)))
		bw.WriteString("    outer loop\n")
		fmt.Fprintf(bw, "      vertex %s\n", vec(v0))
		fmt.Fprintf(bw, "      vertex %s\n", vec(v1))
		fmt.Fprintf(bw, "      vertex %s\n", vec(v2))
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// EncodeBinary writes buf as a binary STL: an 80-byte header, a facet count
// and 50 bytes per facet (float32 normal and corners, zero attribute).
func EncodeBinary(w io.Writer, name string, buf *mesh.Buffer) error {
	if buf.Empty() {
		return fault.Geometryf("stl", "no geometry")
	}
	if uint64(len(buf.Triangles)) > math.MaxUint32 {
		return fault.Validationf("stl", "%d triangles exceed the binary facet count", len(buf.Triangles))
	}
	bw := bufio.NewWriter(w)
	var hdr [headerSize]byte
	copy(hdr[:], "binary STL "+SolidName(name))
	bw.Write(hdr[:])

	var rec [facetSize]byte
	binary.LittleEndian.PutUint32(rec[:4], uint32(len(buf.Triangles)))
	bw.Write(rec[:4])
	put := func(off int, v mgl64.Vec3) {
		for a := 0; a < 3; a++ {
			binary.LittleEndian.PutUint32(rec[off+4*a:], math.Float32bits(float32(v[a])))
		}
	}
	for t := range buf.Triangles {
		v0, v1, v2 := buf.Triangle(t)
		put(0, buf.Normal(t))
		put(12, v0)
		put(24, v1)
		put(36, v2)
		rec[48], rec[49] = 0, 0
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// BinarySize is the exact byte length of a binary STL with n facets.
func BinarySize(n int) int64 { return headerSize + 4 + facetSize*int64(n) }

// Solid is a decoded STL file. Mesh holds three unshared vertices per facet.
type Solid struct {
	Name    string
	Binary  bool
	Normals []mgl64.Vec3
	Mesh    *mesh.Buffer
}

// Decode reads either STL layout. A file is treated as binary when its length
// matches the facet count in its header, since binary headers may also start
// with "solid".
func Decode(r io.Reader) (*Solid, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(raw) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(raw[headerSize:])
		if BinarySize(int(n)) == int64(len(raw)) {
			return decodeBinary(raw, int(n)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimLeft(raw, " \t\r\n"), []byte("solid")) {
		return decodeASCII(raw)
	}
	return nil, fmt.Errorf("stl: unrecognized file layout (%d bytes)", len(raw))
}

func decodeBinary(raw []byte, n int) *Solid {
	s := &Solid{
		Name:    strings.TrimPrefix(strings.TrimRight(string(raw[:headerSize]), "\x00 "), "binary STL "),
		Binary:  true,
		Normals: make([]mgl64.Vec3, 0, n),
		Mesh:    &mesh.Buffer{},
	}
	get := func(off int) mgl64.Vec3 {
		var v mgl64.Vec3
		for a := 0; a < 3; a++ {
			v[a] = float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[off+4*a:])))
		}
		return v
	}
	for i := 0; i < n; i++ {
		off := headerSize + 4 + i*facetSize
		s.Normals = append(s.Normals, get(off))
		base := s.Mesh.Base()
		s.Mesh.AddVertex(get(off + 12))
		s.Mesh.AddVertex(get(off + 24))
		s.Mesh.AddVertex(get(off + 36))
		s.Mesh.AddTriangle(base, 0, 1, 2)
	}
	return s
}

func decodeASCII(raw []byte) (*Solid, error) {
	s := &Solid{Mesh: &mesh.Buffer{}}
	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var (
		corners []mgl64.Vec3
		normal  mgl64.Vec3
		line    int
	)
	parseVec := func(fields []string) (mgl64.Vec3, error) {
		var v mgl64.Vec3
		if len(fields) != 3 {
			return v, fmt.Errorf("stl: line %d: want 3 components, got %d", line, len(fields))
		}
		for a := 0; a < 3; a++ {
			f, err := strconv.ParseFloat(fields[a], 64)
			if err != nil {
				return v, fmt.Errorf("stl: line %d: %w", line, err)
			}
			v[a] = f
		}
		return v, nil
	}
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if len(fields) > 1 {
				s.Name = strings.Join(fields[1:], " ")
			}
		case "facet":
			if len(fields) < 2 || fields[1] != "normal" {
				return nil, fmt.Errorf("stl: line %d: malformed facet", line)
			}
			n, err := parseVec(fields[2:])
			if err != nil {
				return nil, err
			}
			normal = n
			corners = corners[:0]
		case "vertex":
			v, err := parseVec(fields[1:])
			if err != nil {
				return nil, err
			}
			corners = append(corners, v)
		case "endfacet":
			if len(corners) != 3 {
				return nil, fmt.Errorf("stl: line %d: facet has %d vertices", line, len(corners))
			}
			base := s.Mesh.Base()
			for _, c := range corners {
				s.Mesh.AddVertex(c)
			}
			s.Mesh.AddTriangle(base, 0, 1, 2)
			s.Normals = append(s.Normals, normal)
		case "outer", "endloop", "endsolid":
		default:
			return nil, fmt.Errorf("stl: line %d: unexpected %q", line, fields[0])
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return s, nil
}
