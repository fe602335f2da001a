package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"brickforge.ai/internal/export"
	"brickforge.ai/internal/lattice/catalogs"
	"brickforge.ai/internal/lattice/tuning"
	"brickforge.ai/internal/persistence/journal"
)

// ErrNotFound is returned by lookups for an unknown export id.
var ErrNotFound = errors.New("export not found")

// SQLiteIndex records export artifacts synchronously and request summaries
// through a background writer.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan journal.RequestEntry
	wg   sync.WaitGroup
	once sync.Once

	closed           atomic.Bool
	dropRequestTotal atomic.Uint64
}

type QueueStats struct {
	DropRequestTotal uint64 `json:"drop_request_total"`
	QueueDepth       int    `json:"queue_depth"`
	QueueCapacity    int    `json:"queue_capacity"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan journal.RequestEntry, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS exports (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			file TEXT NOT NULL,
			path TEXT NOT NULL,
			format TEXT NOT NULL,
			units INTEGER NOT NULL,
			vertices INTEGER NOT NULL,
			triangles INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			degraded INTEGER NOT NULL,
			reason TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_exports_created ON exports(created_at);`,
		`CREATE TABLE IF NOT EXISTS requests (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			time TEXT NOT NULL,
			request_id TEXT,
			type TEXT NOT NULL,
			ok INTEGER NOT NULL,
			code TEXT,
			units INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_requests_type_time ON requests(type, time);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordExport stores r before returning, so its id resolves immediately.
func (s *SQLiteIndex) RecordExport(ctx context.Context, r export.Result) error {
	if s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exports(id,name,file,path,format,units,vertices,triangles,bytes,degraded,reason,created_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.ID, r.Name, r.File, r.Path, string(r.Format), r.Units, r.Vertices, r.Triangles, r.Bytes, boolInt(r.Degraded), r.Reason,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

const exportColumns = `id,name,file,path,format,units,vertices,triangles,bytes,degraded,reason,created_at`

func (s *SQLiteIndex) LookupExport(ctx context.Context, id string) (export.Result, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+exportColumns+` FROM exports WHERE id = ?`, id)
	r, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return export.Result{}, ErrNotFound
	}
	return r, err
}

// ListExports returns up to limit exports, newest first.
func (s *SQLiteIndex) ListExports(ctx context.Context, limit int) ([]export.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+exportColumns+` FROM exports ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []export.Result
	for rows.Next() {
		r, err := scanExport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExport(sc scanner) (export.Result, error) {
	var (
		r        export.Result
		format   string
		degraded int
		reason   sql.NullString
		created  string
	)
	if err := sc.Scan(&r.ID, &r.Name, &r.File, &r.Path, &format, &r.Units, &r.Vertices, &r.Triangles, &r.Bytes, &degraded, &reason, &created); err != nil {
		return export.Result{}, err
	}
	r.Format = export.Format(format)
	r.Degraded = degraded != 0
	r.Reason = reason.String
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return export.Result{}, fmt.Errorf("export %s: created_at: %w", r.ID, err)
	}
	r.CreatedAt = t
	return r, nil
}

// WriteRequest queues e for the background writer. Entries are dropped when
// the queue is full; the request journal remains the source of truth.
func (s *SQLiteIndex) WriteRequest(e journal.RequestEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- e:
	default:
		s.dropRequestTotal.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() QueueStats {
	return QueueStats{
		DropRequestTotal: s.dropRequestTotal.Load(),
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
	}
}

// CountRequests reports how many request summaries have been committed.
func (s *SQLiteIndex) CountRequests(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM requests`).Scan(&n)
	return n, err
}

// UpsertCatalogs stores the active catalogs and tuning with their digests.
func (s *SQLiteIndex) UpsertCatalogs(ctx context.Context, cats *catalogs.Catalogs, tune tuning.Tuning) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		value  any
	}
	rows := []kv{
		{name: "archetypes", digest: cats.Archetypes.Digest, value: cats.Archetypes.ByID},
		{name: "colors", digest: cats.Colors.Digest, value: cats.Colors.ByID},
		{name: "tuning", value: tune},
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		b, err := json.Marshal(r.value)
		if err != nil {
			return err
		}
		digest := r.digest
		if digest == "" {
			digest = sha256Hex(b)
		}
		if _, err := stmt.ExecContext(ctx, r.name, digest, string(b), now); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta(key,value) VALUES('catalogs_updated_at',?)`, now); err != nil {
		return err
	}
	return tx.Commit()
}

// CatalogDigest returns the stored digest for name, or "" when absent.
func (s *SQLiteIndex) CatalogDigest(ctx context.Context, name string) (string, error) {
	var d string
	err := s.db.QueryRowContext(ctx, `SELECT digest FROM catalogs WHERE name = ?`, name).Scan(&d)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return d, err
}

// loop writes request summaries in batches: one transaction per drain of
// whatever is already queued, committed before waiting for more. The single
// connection is never held idle, so RecordExport and lookups only wait for
// one batch.
func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	const maxBatch = 512

	insertRequest, _ := s.db.Prepare(`INSERT INTO requests(time,request_id,type,ok,code,units,duration_ms) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertRequest != nil {
			_ = insertRequest.Close()
		}
	}()

	for e := range s.ch {
		if insertRequest == nil {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		stmt := tx.StmtContext(ctx, insertRequest)
		insert := func(e journal.RequestEntry) {
			_, _ = stmt.ExecContext(ctx,
				e.Time.UTC().Format(time.RFC3339Nano), e.RequestID, e.Type, boolInt(e.OK), e.Code, e.Units, e.DurationMS)
		}
		insert(e)
	drain:
		for n := 1; n < maxBatch; n++ {
			select {
			case next, ok := <-s.ch:
				if !ok {
					break drain
				}
				insert(next)
			default:
				break drain
			}
		}
		_ = stmt.Close()
		_ = tx.Commit()
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
