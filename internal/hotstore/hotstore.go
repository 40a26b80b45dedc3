// Package hotstore provides the gateway to the live log store that producers
// write into. The archival engine only ever range-reads and batch-deletes;
// Insert exists for producers, backfill, and tests.
package hotstore

import (
	"context"
	"time"

	"github.com/logvault/logvault/pkg/types"
)

// Store abstracts the live, query-optimized log store.
type Store interface {
	// Insert appends records to the live store.
	Insert(ctx context.Context, records []types.LogRecord) error

	// QueryRange returns records of one log type whose timestamp falls within
	// [start, end], both bounds inclusive. The returned order is stable across
	// calls; archives preserve it.
	QueryRange(ctx context.Context, logType types.LogType, start, end time.Time) ([]types.LogRecord, error)

	// DeleteBatch removes the identified records of one log type and returns
	// the number actually deleted. Deleting an absent record is a no-op.
	DeleteBatch(ctx context.Context, logType types.LogType, ids []string) (int64, error)

	// Close releases the underlying connections.
	Close() error
}
