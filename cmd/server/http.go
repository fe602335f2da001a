package main

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"brickforge.ai/internal/engine"
	"brickforge.ai/internal/export"
	"brickforge.ai/internal/persistence/indexdb"
	"brickforge.ai/internal/protocol"
	"brickforge.ai/internal/transport/ws"
)

const maxRequestBytes = 32 << 20

type httpAPI struct {
	svc       *engine.Service
	exportDir string
	maxUnits  int
	gatherer  prometheus.Gatherer
	status    func() map[string]any
	mcp       http.Handler
	logger    *log.Logger
}

func (a *httpAPI) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	if a.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("GET /v1/status", a.handleStatus)
	mux.HandleFunc("POST /v1/requests", a.handleRequest)
	mux.HandleFunc("GET /v1/exports", a.handleListExports)
	mux.HandleFunc("GET /v1/exports/{id}", a.handleDownload)
	mux.HandleFunc("/v1/ws", ws.NewServer(a.svc, a.maxUnits, a.logger).Handler())
	if a.mcp != nil {
		mux.Handle("/mcp", a.mcp)
	}
	return mux
}

func (a *httpAPI) handleRequest(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(rw, http.StatusRequestEntityTooLarge, badRequest(nil, err))
		return
	}
	req, err := protocol.DecodeRequest(body)
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, badRequest(body, err))
		return
	}
	resp := a.svc.Handle(r.Context(), req)
	writeJSON(rw, statusFor(resp.Code), resp)
}

func (a *httpAPI) handleListExports(rw http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	rows, err := a.svc.ListExports(r.Context(), limit)
	if err != nil {
		a.logger.Printf("list exports: %v", err)
		writeJSON(rw, http.StatusInternalServerError, errorBody(protocol.ErrIO, err))
		return
	}
	refs := make([]protocol.ExportRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, engine.ExportRef(row))
	}
	writeJSON(rw, http.StatusOK, map[string]any{"exports": refs})
}

func (a *httpAPI) handleDownload(rw http.ResponseWriter, r *http.Request) {
	res, err := a.svc.Lookup(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, indexdb.ErrNotFound):
		writeJSON(rw, http.StatusNotFound, errorBody(protocol.ErrNotFound, err))
		return
	case err != nil:
		writeJSON(rw, http.StatusServiceUnavailable, errorBody(protocol.ErrIO, err))
		return
	}
	// Serve from the export dir by base name only; the stored path is advisory.
	p := filepath.Join(a.exportDir, filepath.Base(res.File))
	f, err := os.Open(p)
	if err != nil {
		writeJSON(rw, http.StatusNotFound, errorBody(protocol.ErrNotFound, err))
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		writeJSON(rw, http.StatusInternalServerError, errorBody(protocol.ErrIO, err))
		return
	}
	rw.Header().Set("Content-Type", contentType(res.Format))
	rw.Header().Set("Content-Disposition", `attachment; filename="`+res.File+`"`)
	http.ServeContent(rw, r, res.File, st.ModTime(), f)
}

func (a *httpAPI) handleStatus(rw http.ResponseWriter, r *http.Request) {
	out := map[string]any{}
	if a.status != nil {
		out = a.status()
	}
	writeJSON(rw, http.StatusOK, out)
}

func contentType(f export.Format) string {
	switch f {
	case export.Format3MF:
		return "model/3mf"
	default:
		return "model/stl"
	}
}

func statusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case protocol.ErrBadRequest:
		return http.StatusBadRequest
	case protocol.ErrNotFound:
		return http.StatusNotFound
	case protocol.ErrValidation, protocol.ErrGeometry, protocol.ErrUnsupported:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(body []byte, err error) protocol.Response {
	resp := protocol.Response{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		Code:            protocol.ErrBadRequest,
		Error:           err.Error(),
	}
	if base, derr := protocol.DecodeBase(body); derr == nil {
		resp.RequestID = base.RequestID
		resp.For = base.Type
	}
	return resp
}

func errorBody(code string, err error) map[string]any {
	return map[string]any{"ok": false, "code": code, "error": err.Error()}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
