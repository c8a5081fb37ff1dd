// Package journal records every executed transfer so a run can be audited
// after the fact. Recording is bookkeeping, not consensus: ledger truth wins
// when the two disagree.
package journal

import (
	"context"
	"sync"
	"time"
)

// Entry describes one executed transfer.
type Entry struct {
	ID        string `json:"id"`
	RunID     string `json:"run_id"`
	Round     int    `json:"round"`
	FromAgent string `json:"from_agent"`
	ToAgent   string `json:"to_agent"`
	AmountRaw uint64 `json:"amount_raw"`
	Decimals  uint8  `json:"decimals"`
	Signature string `json:"signature"`
	CreatedAt int64  `json:"created_at"`
}

// Recorder persists transfer entries.
type Recorder interface {
	Record(ctx context.Context, entry *Entry) error
	ListLatest(ctx context.Context, limit int) ([]*Entry, error)
	Close() error
}

// MemoryRecorder keeps entries in memory, newest first.
type MemoryRecorder struct {
	mu      sync.RWMutex
	entries []*Entry
}

// NewMemoryRecorder creates an in-memory recorder.
func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{}
}

// Record stores the entry, stamping CreatedAt when unset.
func (r *MemoryRecorder) Record(_ context.Context, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry.CreatedAt == 0 {
		entry.CreatedAt = time.Now().Unix()
	}
	clone := *entry
	r.entries = append([]*Entry{&clone}, r.entries...)
	return nil
}

// ListLatest returns up to limit entries, newest first.
func (r *MemoryRecorder) ListLatest(_ context.Context, limit int) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.entries) {
		limit = len(r.entries)
	}
	results := make([]*Entry, limit)
	for i := 0; i < limit; i++ {
		clone := *r.entries[i]
		results[i] = &clone
	}
	return results, nil
}

// Close is a no-op for the memory recorder.
func (r *MemoryRecorder) Close() error {
	return nil
}
