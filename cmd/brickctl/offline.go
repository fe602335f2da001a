package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"brickforge.ai/internal/engine"
	"brickforge.ai/internal/export"
	"brickforge.ai/internal/export/stl"
	"brickforge.ai/internal/export/threemf"
	"brickforge.ai/internal/importer/ldraw"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/mesh"
	"brickforge.ai/internal/persistence/indexdb"
	"brickforge.ai/internal/protocol"
)

func loadConfig(configDir, tuningPath string) (*catalogs.Catalogs, tuning.Tuning, error) {
	cats, err := catalogs.Load(configDir)
	if err != nil {
		return nil, tuning.Tuning{}, fmt.Errorf("load catalogs: %w", err)
	}
	tp := strings.TrimSpace(tuningPath)
	if tp == "" {
		tp = filepath.Join(configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, tuning.Tuning{}, fmt.Errorf("load tuning: %w", err)
		}
		tune = tuning.Defaults()
	}
	return cats, tune, nil
}

func requestCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("request", flag.ContinueOnError)
	configDir := fs.String("configs", "./configs", "config directory")
	tuningPath := fs.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
	outDir := fs.String("out", ".", "directory for EXPORT artifacts")
	seed := fs.Int64("seed", 0, "seed for randomized requests that carry none (0 = time based)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	raw, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	req, err := protocol.DecodeRequest(raw)
	if err != nil {
		return err
	}

	cats, tune, err := loadConfig(*configDir, *tuningPath)
	if err != nil {
		return err
	}
	synth := mesh.NewSynthesizer(cats, tune.Lattice).WithLimit(tune.Limits.MaxUnits)
	idx := indexdb.NewMemory()
	opts := engine.Options{
		Catalogs: cats,
		Tuning:   tune,
		Exporter: export.New(export.Options{Dir: *outDir, Geometry: synth, Fallback: synth, Index: idx}),
		Store:    idx,
	}
	if *seed != 0 {
		s := *seed
		opts.Seed = func() int64 { return s }
	}
	resp := engine.New(opts).Handle(context.Background(), req)
	if err := printJSON(stdout, resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%s: %s", resp.Code, resp.Error)
	}
	return nil
}

func importCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	color := fs.String("color", "", "color for LDraw main color 16 (default red)")
	limit := fs.Int("limit", 10000, "maximum units")
	unitsOnly := fs.Bool("units", false, "print only the units array")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := readInput(fs.Arg(0))
	if err != nil {
		return err
	}
	res, err := ldraw.Parse(bytes.NewReader(raw), ldraw.Options{DefaultColor: *color, Limit: *limit})
	if err != nil {
		return err
	}
	for _, s := range res.Skipped {
		logger.Printf("line %d: skipped %s (%s)", s.Line, s.Part, s.Reason)
	}
	if *unitsOnly {
		return printJSON(stdout, res.Units)
	}
	return printJSON(stdout, res)
}

type inspectReport struct {
	File      string     `json:"file"`
	Kind      string     `json:"kind"`
	Name      string     `json:"name,omitempty"`
	Size      string     `json:"size"`
	Vertices  int        `json:"vertices"`
	Triangles int        `json:"triangles"`
	Min       [3]float64 `json:"min_mm"`
	Max       [3]float64 `json:"max_mm"`
	VolumeMM3 float64    `json:"volume_mm3"`
	Members   []string   `json:"members,omitempty"`
}

func inspectCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("usage: brickctl inspect <file.stl|file.3mf>")
	}
	path := fs.Arg(0)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return err
	}

	rep := inspectReport{File: filepath.Base(path), Size: humanize.Bytes(uint64(st.Size()))}
	var buf *mesh.Buffer
	switch strings.ToLower(filepath.Ext(path)) {
	case ".3mf":
		pkg, err := threemf.Decode(f, st.Size())
		if err != nil {
			return err
		}
		rep.Kind, rep.Members, buf = "3mf", pkg.Members, pkg.Mesh
	default:
		solid, err := stl.Decode(f)
		if err != nil {
			return err
		}
		rep.Kind, rep.Name, buf = "stl_ascii", solid.Name, solid.Mesh
		if solid.Binary {
			rep.Kind = "stl_binary"
		}
	}
	rep.Vertices, rep.Triangles = len(buf.Vertices), len(buf.Triangles)
	if !buf.Empty() {
		lo, hi := buf.Bounds()
		rep.Min, rep.Max = [3]float64(lo), [3]float64(hi)
		rep.VolumeMM3 = buf.SignedVolume()
	}
	return printJSON(stdout, rep)
}
