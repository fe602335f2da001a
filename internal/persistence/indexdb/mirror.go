package indexdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"brickforge.ai/internal/export"
	"brickforge.ai/internal/persistence/journal"
)

type MirrorConfig struct {
	Endpoint      string
	Token         string
	Source        string
	BatchSize     int
	FlushInterval time.Duration
	HTTPTimeout   time.Duration
	// MaxPending bounds how many events are retained across failed flushes.
	MaxPending int
	Logger     *log.Logger
}

// Mirror forwards export and request events to a remote ingest endpoint in
// batches. Delivery is best effort; failed batches are retried on the next
// flush until MaxPending is exceeded.
type Mirror struct {
	cfg        MirrorConfig
	httpClient *http.Client

	ch   chan mirrorEvent
	wg   sync.WaitGroup
	once sync.Once

	closed    atomic.Bool
	dropTotal atomic.Uint64
	sentTotal atomic.Uint64
}

type mirrorEvent struct {
	Kind    string `json:"kind"`
	Source  string `json:"source"`
	Payload any    `json:"payload"`
}

type MirrorStats struct {
	SentTotal     uint64 `json:"sent_total"`
	DropTotal     uint64 `json:"drop_total"`
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
}

func OpenMirror(cfg MirrorConfig) (*Mirror, error) {
	cfg.Endpoint = strings.TrimSpace(cfg.Endpoint)
	cfg.Source = strings.TrimSpace(cfg.Source)
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("empty mirror endpoint")
	}
	if cfg.Source == "" {
		cfg.Source = "brickforge"
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 128
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 10 * time.Second
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 8 * cfg.BatchSize
	}

	m := &Mirror{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		ch:         make(chan mirrorEvent, 32768),
	}
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop()
	}()
	return m, nil
}

// Close flushes what is queued and stops the sender.
func (m *Mirror) Close() error {
	if m == nil {
		return nil
	}
	m.once.Do(func() {
		m.closed.Store(true)
		close(m.ch)
		m.wg.Wait()
	})
	return nil
}

func (m *Mirror) WriteExport(r export.Result) error {
	m.enqueue(mirrorEvent{Kind: "export", Source: m.cfg.Source, Payload: r})
	return nil
}

func (m *Mirror) WriteRequest(e journal.RequestEntry) error {
	m.enqueue(mirrorEvent{Kind: "request", Source: m.cfg.Source, Payload: e})
	return nil
}

func (m *Mirror) Stats() MirrorStats {
	return MirrorStats{
		SentTotal:     m.sentTotal.Load(),
		DropTotal:     m.dropTotal.Load(),
		QueueDepth:    len(m.ch),
		QueueCapacity: cap(m.ch),
	}
}

func (m *Mirror) enqueue(ev mirrorEvent) {
	if m == nil || m.closed.Load() {
		return
	}
	select {
	case m.ch <- ev:
	default:
		m.dropTotal.Add(1)
	}
}

func (m *Mirror) loop() {
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]mirrorEvent, 0, m.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := m.sendBatch(batch); err != nil {
			m.printf("mirror flush failed batch=%d err=%v", len(batch), err)
			if over := len(batch) - m.cfg.MaxPending; over > 0 {
				m.dropTotal.Add(uint64(over))
				batch = append(batch[:0], batch[over:]...)
			}
			return
		}
		m.sentTotal.Add(uint64(len(batch)))
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-m.ch:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= m.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (m *Mirror) sendBatch(events []mirrorEvent) error {
	body := struct {
		Events []mirrorEvent `json:"events"`
	}{Events: events}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, m.cfg.Endpoint, bytes.NewReader(buf))
		if err != nil {
			return err
		}
		req.Header.Set("content-type", "application/json")
		if m.cfg.Token != "" {
			req.Header.Set("x-bf-index-token", m.cfg.Token)
		}

		resp, err := m.httpClient.Do(req)
		if err == nil {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			err = fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
		lastErr = err
		time.Sleep(time.Duration(100*(1<<attempt)) * time.Millisecond)
	}
	return lastErr
}

func (m *Mirror) printf(format string, args ...any) {
	if m != nil && m.cfg.Logger != nil {
		m.cfg.Logger.Printf(format, args...)
	}
}
