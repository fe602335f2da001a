package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"brickforge.ai/internal/export"
	"brickforge.ai/internal/persistence/journal"
)

type requestSummary struct {
	Files      int            `json:"files"`
	Requests   int            `json:"requests"`
	Failed     int            `json:"failed"`
	ByType     map[string]int `json:"by_type"`
	ByCode     map[string]int `json:"by_code,omitempty"`
	Units      int            `json:"units"`
	SlowestMS  int64          `json:"slowest_ms"`
	SlowestReq string         `json:"slowest_request,omitempty"`
}

type exportSummary struct {
	Files     int            `json:"files"`
	Exports   int            `json:"exports"`
	Degraded  int            `json:"degraded"`
	ByFormat  map[string]int `json:"by_format"`
	Triangles int            `json:"triangles"`
	Bytes     string         `json:"bytes"`
}

func journalCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("journal", flag.ContinueOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	kind := fs.String("kind", "requests", "journal kind: requests|exports")
	if err := fs.Parse(args); err != nil {
		return err
	}

	dir := filepath.Join(*dataDir, "journal")
	files, err := listJournalFiles(dir, *kind)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no %s journal files in %s", *kind, dir)
	}

	switch *kind {
	case "requests":
		sum := requestSummary{Files: len(files), ByType: map[string]int{}, ByCode: map[string]int{}}
		for _, path := range files {
			err := journal.ReadFile(path, func(e journal.RequestEntry) error {
				sum.Requests++
				sum.ByType[e.Type]++
				sum.Units += e.Units
				if !e.OK {
					sum.Failed++
					sum.ByCode[e.Code]++
				}
				if e.DurationMS > sum.SlowestMS {
					sum.SlowestMS, sum.SlowestReq = e.DurationMS, e.RequestID
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return printJSON(stdout, sum)
	case "exports":
		sum := exportSummary{Files: len(files), ByFormat: map[string]int{}}
		var total uint64
		for _, path := range files {
			err := journal.ReadFile(path, func(r export.Result) error {
				sum.Exports++
				sum.ByFormat[string(r.Format)]++
				sum.Triangles += r.Triangles
				total += uint64(r.Bytes)
				if r.Degraded {
					sum.Degraded++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		sum.Bytes = humanize.Bytes(total)
		return printJSON(stdout, sum)
	default:
		return usageError("unknown -kind " + *kind + " (want requests or exports)")
	}
}

func listJournalFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix+"-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
