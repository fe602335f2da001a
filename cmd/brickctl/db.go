package main

import (
	"context"
	"flag"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"brickforge.ai/internal/persistence/indexdb"
)

type exportRow struct {
	ID        string `json:"id"`
	File      string `json:"file"`
	Format    string `json:"format"`
	Triangles int    `json:"triangles"`
	Size      string `json:"size"`
	Degraded  bool   `json:"degraded,omitempty"`
	Age       string `json:"age"`
}

func dbCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("db", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/brickforge.sqlite)")
	limit := fs.Int("limit", 20, "result limit")
	if err := fs.Parse(args); err != nil {
		return err
	}

	q := "exports"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "brickforge.sqlite")
	}

	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		return err
	}
	defer idx.Close()
	ctx := context.Background()

	switch q {
	case "exports":
		rows, err := idx.ListExports(ctx, *limit)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := printJSON(stdout, exportRow{
				ID:        r.ID,
				File:      r.File,
				Format:    string(r.Format),
				Triangles: r.Triangles,
				Size:      humanize.Bytes(uint64(r.Bytes)),
				Degraded:  r.Degraded,
				Age:       humanize.Time(r.CreatedAt),
			}); err != nil {
				return err
			}
		}
		return nil
	case "requests":
		n, err := idx.CountRequests(ctx)
		if err != nil {
			return err
		}
		return printJSON(stdout, map[string]int{"requests": n})
	case "catalogs":
		out := map[string]string{}
		for _, name := range []string{"archetypes", "colors", "tuning"} {
			d, err := idx.CatalogDigest(ctx, name)
			if err != nil {
				return err
			}
			out[name] = d
		}
		return printJSON(stdout, out)
	default:
		return usageError("unknown db query " + q + " (want exports, requests or catalogs)")
	}
}
