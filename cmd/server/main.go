package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"brickforge.ai/internal/engine"
	"brickforge.ai/internal/export"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/mesh"
	"brickforge.ai/internal/persistence/indexdb"
	"brickforge.ai/internal/persistence/journal"
	"brickforge.ai/internal/transport/mcp"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory (archetypes.json, colors.json, tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the export index (downloads by id are unavailable)")
		noJournal  = flag.Bool("disable_journal", false, "disable the zstd request/export journal")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	ctx, cancel := signalContext()
	defer cancel()

	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if u, ok := idx.(catalogUpserter); ok {
			if err := u.UpsertCatalogs(ctx, cats, tune); err != nil {
				logger.Printf("index backend: upsert catalogs: %v", err)
			}
		}
	}

	mirror, err := openIndexMirror(logger)
	if err != nil {
		logger.Fatalf("open index mirror: %v", err)
	}
	if mirror != nil {
		defer mirror.Close()
	}


	var (
		exportSinks  multiExportJournal
		requestSinks []engine.RequestSink
	)
	if !*noJournal {
		exportLog := journal.NewExportLogger(*dataDir)
		requestLog := journal.NewRequestLogger(*dataDir)
		defer exportLog.Close()
		defer requestLog.Close()
		exportSinks = append(exportSinks, exportLog)
		requestSinks = append(requestSinks, requestLog)
	}
	if sink, ok := idx.(engine.RequestSink); ok {
		requestSinks = append(requestSinks, sink)
	}
	if mirror != nil {
		exportSinks = append(exportSinks, mirror)
		requestSinks = append(requestSinks, mirror)
	}

	exportDir := strings.TrimSpace(tune.Export.Dir)
	if exportDir == "" {
		exportDir = filepath.Join(*dataDir, "exports")
	}

	// Object keys are "<export dir name>/<file>".
	uploader, err := openArtifactUploader(filepath.Dir(exportDir), logger)
	if err != nil {
		logger.Fatalf("init artifact upload: %v", err)
	}
	defer uploader.Close()

	synth := mesh.NewSynthesizer(cats, tune.Lattice).WithLimit(tune.Limits.MaxUnits)
	exOpts := export.Options{
		Dir:      exportDir,
		Geometry: synth,
		Fallback: synth,
		Logger:   logger,
	}
	if idx != nil {
		exOpts.Index = idx
	}
	if len(exportSinks) > 0 {
		exOpts.Journal = exportSinks
	}
	if uploader != nil {
		exOpts.Uploader = uploader
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	engOpts := engine.Options{
		Catalogs: cats,
		Tuning:   tune,
		Exporter: export.New(exOpts),
		Requests: requestSinks,
		Registry: reg,
		Logger:   logger,
	}
	if idx != nil {
		engOpts.Store = idx
	}
	svc := engine.New(engOpts)

	api := &httpAPI{
		svc:       svc,
		exportDir: exportDir,
		maxUnits:  tune.Limits.MaxUnits,
		gatherer:  reg,
		logger:    logger,
		status: func() map[string]any {
			out := map[string]any{
				"archetypes_digest": cats.Archetypes.Digest,
				"colors_digest":     cats.Colors.Digest,
				"max_units":         tune.Limits.MaxUnits,
				"export_dir":        exportDir,
			}
			if s, ok := idx.(*indexdb.SQLiteIndex); ok {
				out["index_queue"] = s.Stats()
			}
			if mirror != nil {
				out["index_mirror"] = mirror.Stats()
			}
			if uploader != nil {
				out["artifact_upload"] = uploader.Stats()
			}
			return out
		},
	}
	if envBool("BF_ENABLE_MCP", true) {
		secret := strings.TrimSpace(os.Getenv("BF_MCP_HMAC_SECRET"))
		m, err := mcp.NewServer(mcp.Config{Engine: svc, HMACSecret: secret, Logger: logger})
		if err != nil {
			logger.Fatalf("mcp: %v", err)
		}
		api.mcp = m.Handler()
		if secret == "" {
			logger.Printf("mcp endpoint enabled without request signing (set BF_MCP_HMAC_SECRET)")
		}
	}
	mux := api.routes()
	if envBool("BF_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (BF_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (exports=%s)", *addr, exportDir)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// multiExportJournal fans one export entry out to every sink; the first error
// wins but every sink is still written.
type multiExportJournal []export.Journal

func (m multiExportJournal) WriteExport(r export.Result) error {
	var first error
	for _, j := range m {
		if err := j.WriteExport(r); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
