package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"brickforge.ai/internal/engine"
	"brickforge.ai/internal/export"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/mesh"
	"brickforge.ai/internal/persistence/indexdb"
	"brickforge.ai/internal/protocol"
	"brickforge.ai/internal/transport/mcp"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cats := catalogs.Default()
	tune := tuning.Defaults()
	dir := filepath.Join(t.TempDir(), "exports")
	synth := mesh.NewSynthesizer(cats, tune.Lattice)
	idx := indexdb.NewMemory()
	reg := prometheus.NewRegistry()
	svc := engine.New(engine.Options{
		Catalogs: cats,
		Tuning:   tune,
		Exporter: export.New(export.Options{Dir: dir, Geometry: synth, Fallback: synth, Index: idx}),
		Store:    idx,
		Registry: reg,
	})
	api := &httpAPI{
		svc:       svc,
		exportDir: dir,
		maxUnits:  tune.Limits.MaxUnits,
		gatherer:  reg,
		logger:    log.New(io.Discard, "", 0),
	}
	m, err := mcp.NewServer(mcp.Config{Engine: svc})
	if err != nil {
		t.Fatalf("mcp.NewServer: %v", err)
	}
	api.mcp = m.Handler()
	srv := httptest.NewServer(api.routes())
	t.Cleanup(srv.Close)
	return srv
}

func postRequest(t *testing.T, srv *httptest.Server, body string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Post(srv.URL+"/v1/requests", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, out
}

func TestHTTP_Healthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(b) != "ok" {
		t.Fatalf("status=%d body=%q", resp.StatusCode, b)
	}
}

func TestHTTP_RequestStatusCodes(t *testing.T) {
	srv := newTestServer(t)

	code, out := postRequest(t, srv, `{"type":"MEASURE","request_id":"m1","units":[{"type":"2x4","x":0,"y":0,"z":0}]}`)
	if code != http.StatusOK || out["ok"] != true || out["request_id"] != "m1" {
		t.Fatalf("measure: status=%d out=%v", code, out)
	}

	code, out = postRequest(t, srv, `{"type":"ROTATE","request_id":"r1","units":[{"type":"1x1","x":0,"y":0,"z":0}],"params":{"angle":45}}`)
	if code != http.StatusUnprocessableEntity || out["code"] != protocol.ErrValidation {
		t.Fatalf("rotate 45: status=%d out=%v", code, out)
	}

	code, out = postRequest(t, srv, `{"type":"EXPLODE_ALL","request_id":"x1"}`)
	if code != http.StatusBadRequest || out["code"] != protocol.ErrBadRequest || out["request_id"] != "x1" {
		t.Fatalf("bad type: status=%d out=%v", code, out)
	}

	code, out = postRequest(t, srv, `{"type":"EXPORT","units":[]}`)
	if code != http.StatusUnprocessableEntity || out["code"] != protocol.ErrGeometry {
		t.Fatalf("empty export: status=%d out=%v", code, out)
	}
}

func TestHTTP_ExportDownloadAndList(t *testing.T) {
	srv := newTestServer(t)
	code, out := postRequest(t, srv, `{"type":"EXPORT","name":"tower","units":[{"type":"2x2","x":0,"y":0,"z":0},{"type":"2x2","x":0,"y":0,"z":1}],"params":{"format":"stl"}}`)
	if code != http.StatusOK {
		t.Fatalf("export: status=%d out=%v", code, out)
	}
	result, _ := out["result"].(map[string]any)
	download, _ := result["download"].(string)
	if download == "" {
		t.Fatalf("missing download in %v", out)
	}

	resp, err := http.Get(srv.URL + download)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != "model/stl" {
		t.Fatalf("download status=%d ct=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !strings.HasPrefix(string(b), "solid tower") || int64(len(b)) != int64(result["bytes"].(float64)) {
		t.Fatalf("unexpected artifact (%d bytes)", len(b))
	}

	resp, err = http.Get(srv.URL + "/v1/exports?limit=5")
	if err != nil {
		t.Fatalf("GET list: %v", err)
	}
	var list struct {
		Exports []protocol.ExportRef `json:"exports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	resp.Body.Close()
	if len(list.Exports) != 1 || list.Exports[0].Download != download {
		t.Fatalf("list=%+v", list.Exports)
	}

	resp, err = http.Get(srv.URL + "/v1/exports/does-not-exist")
	if err != nil {
		t.Fatalf("GET missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing export status=%d", resp.StatusCode)
	}
}

func TestHTTP_MetricsCountRequests(t *testing.T) {
	srv := newTestServer(t)
	postRequest(t, srv, `{"type":"SYMMETRY","units":[{"type":"1x1","x":0,"y":0,"z":0}]}`)
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(b), `brickforge_requests_total{code="OK",type="SYMMETRY"} 1`) {
		t.Fatalf("metrics missing request counter:\n%s", b)
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		"":                      200,
		protocol.ErrBadRequest:  400,
		protocol.ErrNotFound:    404,
		protocol.ErrValidation:  422,
		protocol.ErrGeometry:    422,
		protocol.ErrUnsupported: 422,
		protocol.ErrIO:          500,
		protocol.ErrInternal:    500,
	}
	for code, want := range cases {
		if got := statusFor(code); got != want {
			t.Fatalf("statusFor(%q)=%d want %d", code, got, want)
		}
	}
}

func TestHTTP_MCPEndpointSharesEngine(t *testing.T) {
	srv := newTestServer(t)
	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"brickforge.symmetry","arguments":{"units":[{"type":"2x2","x":0,"y":0,"z":0}]}}}`
	resp, err := http.Post(srv.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	var out struct {
		Result struct {
			IsError bool `json:"isError"`
		} `json:"result"`
		Error any `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != 200 || out.Error != nil || out.Result.IsError {
		t.Fatalf("status=%d out=%+v", resp.StatusCode, out)
	}

	mresp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET metrics: %v", err)
	}
	defer mresp.Body.Close()
	b, _ := io.ReadAll(mresp.Body)
	if !strings.Contains(string(b), `brickforge_requests_total{code="OK",type="SYMMETRY"} 1`) {
		t.Fatalf("mcp call not counted:\n%s", b)
	}
}
