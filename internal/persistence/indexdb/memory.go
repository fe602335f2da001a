package indexdb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"brickforge.ai/internal/export"
)

// MemoryIndex keeps exports in process memory. It backs tests and servers
// started without a database.
type MemoryIndex struct {
	mu     sync.RWMutex
	byID   map[string]export.Result
	closed bool
}

func NewMemory() *MemoryIndex {
	return &MemoryIndex{byID: map[string]export.Result{}}
}

func (m *MemoryIndex) RecordExport(_ context.Context, r export.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("index closed")
	}
	if _, dup := m.byID[r.ID]; dup {
		return fmt.Errorf("duplicate export id %s", r.ID)
	}
	m.byID[r.ID] = r
	return nil
}

func (m *MemoryIndex) LookupExport(_ context.Context, id string) (export.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byID[id]
	if !ok {
		return export.Result{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryIndex) ListExports(_ context.Context, limit int) ([]export.Result, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	out := make([]export.Result, 0, len(m.byID))
	for _, r := range m.byID {
		out = append(out, r)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryIndex) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
