// Package threemf writes and reads the minimal three-member 3MF package:
// content types, relationships and one model document.
package threemf

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"

	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/mesh"
)

const (
	CoreNamespace = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"

	ContentTypesPath = "[Content_Types].xml"
	RelsPath         = "_rels/.rels"
	ModelPath        = "3D/3dmodel.model"
)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="model" ContentType="application/vnd.ms-package.3dmanufacturing-3dmodel+xml"/>
</Types>
`

const relsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Target="/3D/3dmodel.model" Id="rel0" Type="http://schemas.microsoft.com/3dmanufacturing/2013/01/3dmodel"/>
</Relationships>
`

type Model struct {
	XMLName   xml.Name   `xml:"model"`
	Xmlns     string     `xml:"xmlns,attr"`
	Unit      string     `xml:"unit,attr"`
	Metadata  []Metadata `xml:"metadata"`
	Resources Resources  `xml:"resources"`
	Build     Build      `xml:"build"`
}

type Metadata struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type Resources struct {
	Objects []Object `xml:"object"`
}

type Object struct {
	ID   int     `xml:"id,attr"`
	Type string  `xml:"type,attr"`
	Name string  `xml:"name,attr,omitempty"`
	Mesh XMLMesh `xml:"mesh"`
}

type XMLMesh struct {
	Vertices  []Vertex   `xml:"vertices>vertex"`
	Triangles []Triangle `xml:"triangles>triangle"`
}

type Vertex struct {
	X float64 `xml:"x,attr"`
	Y float64 `xml:"y,attr"`
	Z float64 `xml:"z,attr"`
}

type Triangle struct {
	V1 uint32 `xml:"v1,attr"`
	V2 uint32 `xml:"v2,attr"`
	V3 uint32 `xml:"v3,attr"`
}

type Build struct {
	Items []Item `xml:"item"`
}

type Item struct {
	ObjectID int `xml:"objectid,attr"`
}

// NewModel wraps buf as a single millimeter object. Vertices and triangles
// are copied verbatim, in order.
func NewModel(name string, buf *mesh.Buffer) *Model {
	m := &Model{
		Xmlns: CoreNamespace,
		Unit:  "millimeter",
		Build: Build{Items: []Item{{ObjectID: 1}}},
	}
	if name != "" {
		m.Metadata = []Metadata{{Name: "Title", Value: name}}
	}
	obj := Object{ID: 1, Type: "model", Name: name}
	obj.Mesh.Vertices = make([]Vertex, len(buf.Vertices))
	for i, v := range buf.Vertices {
		obj.Mesh.Vertices[i] = Vertex{X: v[0], Y: v[1], Z: v[2]}
	}
	obj.Mesh.Triangles = make([]Triangle, len(buf.Triangles))
	for i, t := range buf.Triangles {
		obj.Mesh.Triangles[i] = Triangle{V1: t[0], V2: t[1], V3: t[2]}
	}
	m.Resources.Objects = []Object{obj}
	return m
}

// Encode writes the package for buf to w. Nothing is written for an empty buffer.
func Encode(w io.Writer, name string, buf *mesh.Buffer) error {
	if buf.Empty() {
		return fault.Geometryf("3mf", "no geometry")
	}
	zw := zip.NewWriter(w)
	if err := writeMember(zw, ContentTypesPath, func(w io.Writer) error {
		_, err := io.WriteString(w, contentTypesXML)
		return err
	}); err != nil {
		return err
	}
	if err := writeMember(zw, RelsPath, func(w io.Writer) error {
		_, err := io.WriteString(w, relsXML)
		return err
	}); err != nil {
		return err
	}
	if err := writeMember(zw, ModelPath, func(w io.Writer) error {
		if _, err := io.WriteString(w, xml.Header); err != nil {
			return err
		}
		enc := xml.NewEncoder(w)
		enc.Indent("", " ")
		if err := enc.Encode(NewModel(name, buf)); err != nil {
			return err
		}
		return enc.Close()
	}); err != nil {
		return err
	}
	return zw.Close()
}

func writeMember(zw *zip.Writer, name string, fill func(io.Writer) error) error {
	fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return fmt.Errorf("3mf: %s: %w", name, err)
	}
	if err := fill(fw); err != nil {
		return fmt.Errorf("3mf: %s: %w", name, err)
	}
	return nil
}

// Package is a decoded 3MF archive.
type Package struct {
	Members []string
	Model   *Model
	Mesh    *mesh.Buffer
}

// Decode reads a package written by Encode, or any package whose model sits
// at ModelPath with a single mesh object.
func Decode(r io.ReaderAt, size int64) (*Package, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("3mf: %w", err)
	}
	p := &Package{}
	var model *zip.File
	for _, f := range zr.File {
		p.Members = append(p.Members, f.Name)
		if f.Name == ModelPath {
			model = f
		}
	}
	if model == nil {
		return nil, fmt.Errorf("3mf: missing %s", ModelPath)
	}
	rc, err := model.Open()
	if err != nil {
		return nil, fmt.Errorf("3mf: %w", err)
	}
	defer rc.Close()

	var m Model
	if err := xml.NewDecoder(rc).Decode(&m); err != nil {
		return nil, fmt.Errorf("3mf: %s: %w", ModelPath, err)
	}
	if len(m.Resources.Objects) == 0 {
		return nil, fmt.Errorf("3mf: model has no objects")
	}
	p.Model = &m

	buf := &mesh.Buffer{}
	for _, obj := range m.Resources.Objects {
		base := buf.Base()
		for _, v := range obj.Mesh.Vertices {
			buf.AddVertex([3]float64{v.X, v.Y, v.Z})
		}
		for _, t := range obj.Mesh.Triangles {
			buf.AddTriangle(base, t.V1, t.V2, t.V3)
		}
	}
	if err := buf.Validate(); err != nil {
		return nil, fmt.Errorf("3mf: %w", err)
	}
	p.Mesh = buf
	return p, nil
}
