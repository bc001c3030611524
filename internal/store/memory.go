package store

import (
	"context"
	"sync"

	"github.com/odyssey-erp/closure-watch/internal/scan"
)

// Memory keeps the latest scan in process memory.
type Memory struct {
	mu     sync.RWMutex
	latest *scan.Result
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// SaveLatest overwrites the stored snapshot.
func (m *Memory) SaveLatest(ctx context.Context, result scan.Result) error {
	snapshot := result.Clone()
	m.mu.Lock()
	m.latest = &snapshot
	m.mu.Unlock()
	return nil
}

// Latest returns a copy of the stored snapshot.
func (m *Memory) Latest(ctx context.Context) (scan.Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest == nil {
		return scan.Result{}, false, nil
	}
	return m.latest.Clone(), true, nil
}
