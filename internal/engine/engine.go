// Package engine answers protocol requests against the lattice, mesh and
// export packages. A Service is safe for concurrent use.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"brickforge.ai/internal/export"
	"brickforge.ai/internal/fault"
	"brickforge.ai/internal/lattice"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/persistence/journal"
	"brickforge.ai/internal/protocol"
)

// ExportStore resolves export ids recorded by the exporter.
type ExportStore interface {
	LookupExport(ctx context.Context, id string) (export.Result, error)
	ListExports(ctx context.Context, limit int) ([]export.Result, error)
}

// RequestSink receives one summary per handled request.
type RequestSink interface {
	WriteRequest(e journal.RequestEntry) error
}

type Options struct {
	Catalogs *catalogs.Catalogs
	Tuning   tuning.Tuning
	Exporter *export.Exporter
	Store    ExportStore
	Requests []RequestSink
	Registry prometheus.Registerer
	Logger   *log.Logger
	// Seed returns the seed for randomized operations that do not carry one.
	Seed func() int64
}

type Service struct {
	cat      *catalogs.Catalogs
	tune     tuning.Tuning
	exporter *export.Exporter
	store    ExportStore
	sinks    []RequestSink
	logger   *log.Logger
	seed     func() int64
	metrics  *metrics

	handlers map[string]handlerFunc
}

// outcome is what a handler contributes to a Response.
type outcome struct {
	units    []lattice.Unit
	findings any
	result   any
}

type handlerFunc func(ctx context.Context, req *protocol.Request) (outcome, error)

func New(opts Options) *Service {
	if opts.Catalogs == nil {
		opts.Catalogs = catalogs.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.Seed == nil {
		opts.Seed = func() int64 { return time.Now().UnixNano() }
	}
	if opts.Tuning.Limits.MaxUnits <= 0 {
		opts.Tuning = tuning.Defaults()
	}
	s := &Service{
		cat:      opts.Catalogs,
		tune:     opts.Tuning,
		exporter: opts.Exporter,
		store:    opts.Store,
		sinks:    opts.Requests,
		logger:   opts.Logger,
		seed:     opts.Seed,
		metrics:  newMetrics(opts.Registry),
	}
	s.handlers = s.routes()
	return s
}

func (s *Service) Catalogs() *catalogs.Catalogs { return s.cat }

// Handle runs one request. Failures are reported in the Response, never as a
// Go error.
func (s *Service) Handle(ctx context.Context, req protocol.Request) protocol.Response {
	start := time.Now()
	resp := protocol.Response{
		Type:            protocol.TypeResult,
		ProtocolVersion: protocol.Version,
		RequestID:       req.RequestID,
		For:             req.Type,
	}

	out, err := s.dispatch(ctx, &req)
	if err != nil {
		resp.Code = protocol.CodeFor(err)
		var bad *protocol.BadRequestError
		if errors.As(err, &bad) {
			resp.Code = protocol.ErrBadRequest
		}
		resp.Error = err.Error()
		if resp.Code == protocol.ErrInternal || resp.Code == protocol.ErrIO {
			s.logger.Printf("request %s %s: %v", req.Type, req.RequestID, err)
		}
	} else {
		resp.OK = true
		resp.Units = out.units
		resp.Findings = out.findings
		resp.Result = out.result
	}

	elapsed := time.Since(start)
	typ := req.Type
	if _, ok := s.handlers[typ]; !ok {
		typ = "unknown"
	}
	code := resp.Code
	if code == "" {
		code = "OK"
	}
	s.metrics.requests.WithLabelValues(typ, code).Inc()
	s.metrics.duration.WithLabelValues(typ).Observe(elapsed.Seconds())
	s.metrics.units.Observe(float64(len(req.Units)))

	entry := journal.RequestEntry{
		Time:       start.UTC(),
		RequestID:  req.RequestID,
		Type:       req.Type,
		OK:         resp.OK,
		Code:       resp.Code,
		Units:      len(req.Units),
		DurationMS: elapsed.Milliseconds(),
	}
	for _, sink := range s.sinks {
		if err := sink.WriteRequest(entry); err != nil {
			s.logger.Printf("request journal: %v", err)
		}
	}
	return resp
}

func (s *Service) dispatch(ctx context.Context, req *protocol.Request) (outcome, error) {
	h, ok := s.handlers[req.Type]
	if !ok {
		return outcome{}, &protocol.BadRequestError{Msg: "unknown request type " + strconv.Quote(req.Type)}
	}
	if n := len(req.Units); n > s.tune.Limits.MaxUnits {
		return outcome{}, fault.Validationf(req.Type, "%d units exceeds the safety limit of %d", n, s.tune.Limits.MaxUnits)
	}
	if err := lattice.CheckUnits(req.Type, req.Units); err != nil {
		return outcome{}, err
	}
	if err := ctx.Err(); err != nil {
		return outcome{}, err
	}
	out, err := h(ctx, req)
	if err != nil {
		return outcome{}, err
	}
	// Results feed later requests, so they obey the same anchor bounds.
	if err := lattice.CheckUnits(req.Type+" result", out.units); err != nil {
		return outcome{}, err
	}
	return out, nil
}

// Lookup resolves an export id.
func (s *Service) Lookup(ctx context.Context, id string) (export.Result, error) {
	if s.store == nil {
		return export.Result{}, fmt.Errorf("no export index configured")
	}
	return s.store.LookupExport(ctx, id)
}

func (s *Service) ListExports(ctx context.Context, limit int) ([]export.Result, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListExports(ctx, limit)
}

func (s *Service) rng(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(s.seed()))
}
