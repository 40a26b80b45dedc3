package hotstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/logvault/logvault/pkg/types"
)

// MemoryStore implements Store in memory. It is used in tests where the
// SQLite store would get in the way of fault injection.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[types.LogType][]types.LogRecord
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[types.LogType][]types.LogRecord),
	}
}

// Insert appends records, keeping each type's slice ordered by (ts, id).
func (m *MemoryStore) Insert(ctx context.Context, records []types.LogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range records {
		m.records[rec.Type] = append(m.records[rec.Type], rec)
	}
	for t := range m.records {
		recs := m.records[t]
		sort.SliceStable(recs, func(i, j int) bool {
			if recs[i].Timestamp.Equal(recs[j].Timestamp) {
				return recs[i].ID < recs[j].ID
			}
			return recs[i].Timestamp.Before(recs[j].Timestamp)
		})
	}
	return nil
}

// QueryRange returns records within [start, end] inclusive.
func (m *MemoryStore) QueryRange(ctx context.Context, logType types.LogType, start, end time.Time) ([]types.LogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.LogRecord
	for _, rec := range m.records[logType] {
		if rec.Timestamp.Before(start) || rec.Timestamp.After(end) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// DeleteBatch removes the identified records.
func (m *MemoryStore) DeleteBatch(ctx context.Context, logType types.LogType, ids []string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var kept []types.LogRecord
	var deleted int64
	for _, rec := range m.records[logType] {
		if drop[rec.ID] {
			deleted++
			continue
		}
		kept = append(kept, rec)
	}
	m.records[logType] = kept
	return deleted, nil
}

// Count returns how many records of a type are currently held. Test helper.
func (m *MemoryStore) Count(logType types.LogType) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records[logType])
}

// Close is a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
