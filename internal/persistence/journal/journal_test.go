package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"brickforge.ai/internal/export"
)

func TestJSONLZstdWriter_RotatesHourly(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "t")
	clock := time.Date(2026, 3, 1, 10, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	if err := w.Write(map[string]int{"n": 1}); err != nil {
		t.Fatalf("write: %v", err)
	}
	first := w.Path()
	clock = clock.Add(2 * time.Minute)
	if err := w.Write(map[string]int{"n": 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	second := w.Path()
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if filepath.Base(first) != "t-2026-03-01-10.jsonl.zst" || filepath.Base(second) != "t-2026-03-01-11.jsonl.zst" {
		t.Fatalf("paths %s %s", first, second)
	}
	for i, p := range []string{first, second} {
		var got []map[string]int
		if err := ReadFile(p, func(v map[string]int) error { got = append(got, v); return nil }); err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		if len(got) != 1 || got[0]["n"] != i+1 {
			t.Fatalf("%s: %v", p, got)
		}
	}
}

func TestExportLogger_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	l := NewExportLogger(dir)

	want := []export.Result{
		{ID: "a", Name: "tower", File: "tower_a.stl", Format: export.FormatSTL, Triangles: 44, Bytes: 900},
		{ID: "b", Name: "tower", File: "tower_b.stl", Format: export.FormatSTL, Degraded: true, Reason: "geometry backend unavailable"},
	}
	for _, r := range want {
		if err := l.WriteExport(r); err != nil {
			t.Fatalf("WriteExport: %v", err)
		}
	}
	path := l.Path()
	if !strings.HasPrefix(path, filepath.Join(dir, "journal", "exports-")) {
		t.Fatalf("path=%s", path)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	var got []export.Result
	if err := ReadFile(path, func(r export.Result) error { got = append(got, r); return nil }); err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestLogger_AppendsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 2; i++ {
		l := NewRequestLogger(dir)
		if err := l.WriteRequest(RequestEntry{Type: "analyze", OK: true, Units: i}); err != nil {
			t.Fatalf("WriteRequest: %v", err)
		}
		if err := l.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}
	ents, err := os.ReadDir(filepath.Join(dir, "journal"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	n := 0
	for _, e := range ents {
		if err := ReadFile(filepath.Join(dir, "journal", e.Name()), func(RequestEntry) error { n++; return nil }); err != nil {
			t.Fatalf("ReadFile: %v", err)
		}
	}
	if n != 2 {
		t.Fatalf("entries=%d want 2", n)
	}
}
