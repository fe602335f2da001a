// Package export turns unit lists into fabrication files on disk.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"brickforge.ai/internal/export/stl"
	"brickforge.ai/internal/export/threemf"
	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/mesh"
)

type Format string

const (
	FormatSTL       Format = "stl"
	FormatSTLBinary Format = "stl_binary"
	Format3MF       Format = "3mf"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatSTL, nil
	case FormatSTL, FormatSTLBinary, Format3MF:
		return f, nil
	default:
		return "", fmt.Errorf("format must be 'stl', 'stl_binary', or '3mf'; got %q", s)
	}
}

// Geometry turns units into a mesh. Implementations report a missing
// capability with fault.ErrUnsupported.
type Geometry interface {
	Synthesize(ctx context.Context, units []lattice.Unit) (*mesh.Buffer, error)
}

// Codec serializes a mesh for one format.
type Codec struct {
	Ext    string
	Encode func(w io.Writer, name string, buf *mesh.Buffer, p stl.Precision) error
}

// DefaultCodecs returns the built-in format table.
func DefaultCodecs() map[Format]Codec {
	return map[Format]Codec{
		FormatSTL: {Ext: "stl", Encode: stl.EncodeASCII},
		FormatSTLBinary: {Ext: "stl", Encode: func(w io.Writer, name string, buf *mesh.Buffer, _ stl.Precision) error {
			return stl.EncodeBinary(w, name, buf)
		}},
		Format3MF: {Ext: "3mf", Encode: func(w io.Writer, name string, buf *mesh.Buffer, _ stl.Precision) error {
			return threemf.Encode(w, name, buf)
		}},
	}
}

// Recorder persists export metadata so artifacts can be fetched by id.
type Recorder interface {
	RecordExport(ctx context.Context, r Result) error
}

// Journal receives one entry per finished export.
type Journal interface {
	WriteExport(r Result) error
}

// Uploader copies finished artifacts to off-host storage. Enqueue must not block
// for long.
type Uploader interface {
	Enqueue(localPath string)
}

type Result struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	File      string    `json:"file"`
	Path      string    `json:"-"`
	Format    Format    `json:"format"`
	Units     int       `json:"units"`
	Vertices  int       `json:"vertices"`
	Triangles int       `json:"triangles"`
	Bytes     int64     `json:"bytes"`
	Degraded  bool      `json:"degraded"`
	Reason    string    `json:"degraded_reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Request struct {
	Name      string
	Units     []lattice.Unit
	Format    Format
	Precision stl.Precision
}

type Options struct {
	Dir string
	// Geometry is the preferred backend. When nil, or when it reports
	// fault.ErrUnsupported, exports fall back to Fallback.Boxes.
	Geometry Geometry
	Fallback *mesh.Synthesizer
	Codecs   map[Format]Codec
	Index    Recorder
	Journal  Journal
	Uploader Uploader
	Logger   *log.Logger
}

type Exporter struct {
	dir      string
	geometry Geometry
	fallback *mesh.Synthesizer
	codecs   map[Format]Codec
	index    Recorder
	journal  Journal
	uploader Uploader
	logger   *log.Logger

	newID func() string
	now   func() time.Time
}

func New(opts Options) *Exporter {
	if opts.Codecs == nil {
		opts.Codecs = DefaultCodecs()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Exporter{
		dir:      opts.Dir,
		geometry: opts.Geometry,
		fallback: opts.Fallback,
		codecs:   opts.Codecs,
		index:    opts.Index,
		journal:  opts.Journal,
		uploader: opts.Uploader,
		logger:   opts.Logger,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

func (e *Exporter) Dir() string { return e.dir }

// Export synthesizes units and writes one artifact. On error no file is left
// under the export directory and no id is recorded.
func (e *Exporter) Export(ctx context.Context, req Request) (Result, error) {
	if len(req.Units) == 0 {
		return Result{}, fault.Geometryf("export", "no geometry")
	}
	if req.Format == "" {
		req.Format = FormatSTL
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return Result{}, fault.IO("mkdir", err)
	}

	res := Result{
		ID:        e.newID(),
		Name:      req.Name,
		Format:    req.Format,
		Units:     len(req.Units),
		CreatedAt: e.now().UTC(),
	}

	buf, reason, err := e.preferred(ctx, req)
	if err != nil {
		return Result{}, err
	}
	if reason == "" {
		codec := e.codecs[req.Format]
		res.File = fileName(req.Name, res.ID, codec.Ext)
		res.Path = filepath.Join(e.dir, res.File)
		res.Bytes, err = writeAtomic(res.Path, func(w io.Writer) error {
			return codec.Encode(w, req.Name, buf, req.Precision)
		})
		switch {
		case errors.Is(err, fault.ErrUnsupported):
			reason = err.Error()
		case err != nil:
			return Result{}, err
		}
	}

	if reason != "" {
		if e.fallback == nil {
			return Result{}, fault.Unsupportedf("export", "no fallback geometry: %s", reason)
		}
		e.logger.Printf("export %s degraded: %s", res.ID, reason)
		buf, err = e.fallback.Boxes(ctx, req.Units)
		if err != nil {
			return Result{}, err
		}
		res.Degraded, res.Reason, res.Format = true, reason, FormatSTL
		res.File = fileName(req.Name, res.ID, "stl")
		res.Path = filepath.Join(e.dir, res.File)
		res.Bytes, err = writeAtomic(res.Path, func(w io.Writer) error {
			return stl.EncodeASCII(w, req.Name, buf, stl.PrecisionReadable)
		})
		if err != nil {
			return Result{}, err
		}
	}
	res.Vertices, res.Triangles = len(buf.Vertices), len(buf.Triangles)

	if e.index != nil {
		if err := e.index.RecordExport(ctx, res); err != nil {
			_ = os.Remove(res.Path)
			return Result{}, fault.IO("record", err)
		}
	}
	if e.journal != nil {
		if err := e.journal.WriteExport(res); err != nil {
			e.logger.Printf("export %s: journal: %v", res.ID, err)
		}
	}
	if e.uploader != nil {
		e.uploader.Enqueue(res.Path)
	}
	e.logger.Printf("export %s: %s %s (%d triangles, %s)", res.ID, res.Format, res.File, res.Triangles, humanize.Bytes(uint64(res.Bytes)))
	return res, nil
}

// preferred runs the preferred geometry backend. A non-empty reason means the
// export must degrade.
func (e *Exporter) preferred(ctx context.Context, req Request) (*mesh.Buffer, string, error) {
	if _, ok := e.codecs[req.Format]; !ok {
		return nil, fmt.Sprintf("format %q unavailable", req.Format), nil
	}
	if e.geometry == nil {
		return nil, "geometry backend unavailable", nil
	}
	buf, err := e.geometry.Synthesize(ctx, req.Units)
	switch {
	case errors.Is(err, fault.ErrUnsupported):
		return nil, err.Error(), nil
	case err != nil:
		return nil, "", err
	}
	return buf, "", nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func fileName(name, id, ext string) string {
	base := strings.Trim(unsafeName.ReplaceAllString(name, "_"), "_")
	if base == "" {
		base = "design"
	}
	if len(base) > 64 {
		base = base[:64]
	}
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s.%s", base, short, ext)
}
