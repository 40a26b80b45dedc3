// Package ingest provides a JSON-lines backfill loader for the hot store.
// Producers normally write records directly; the loader exists for imports
// and migrations, e.g. replaying an export from a previous logging system.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fastjson"

	"github.com/logvault/logvault/internal/hotstore"
	"github.com/logvault/logvault/pkg/types"
)

// defaultBatchSize is how many parsed records are inserted per transaction.
const defaultBatchSize = 1000

// maxLineBytes bounds a single JSON line (1 MiB).
const maxLineBytes = 1 << 20

// Loader parses JSON-lines input and inserts the records into the hot store.
// Each line is an object with "type" and "timestamp" (RFC 3339) envelope
// fields and an optional "id"; the full line is kept as the opaque payload.
type Loader struct {
	store     hotstore.Store
	batchSize int
}

// NewLoader creates a backfill loader.
func NewLoader(store hotstore.Store, batchSize int) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Loader{store: store, batchSize: batchSize}
}

// LoadFile imports a JSON-lines file. Returns the number of records inserted.
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("ingest: failed to open %s: %w", path, err)
	}
	defer f.Close()

	return l.Load(ctx, f)
}

// Load imports JSON-lines from a reader. Malformed lines abort the import
// with a line-numbered error; nothing is partially dropped silently.
func (l *Loader) Load(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var parser fastjson.Parser
	var batch []types.LogRecord
	total := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		rec, err := parseLine(&parser, line)
		if err != nil {
			return total, fmt.Errorf("ingest: line %d: %w", lineNo, err)
		}
		batch = append(batch, rec)

		if len(batch) >= l.batchSize {
			if err := l.store.Insert(ctx, batch); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("ingest: read failed at line %d: %w", lineNo, err)
	}

	if len(batch) > 0 {
		if err := l.store.Insert(ctx, batch); err != nil {
			return total, err
		}
		total += len(batch)
	}

	log.Printf("ingest: imported %d records from %d lines", total, lineNo)
	return total, nil
}

// parseLine extracts the envelope fields from one JSON line.
func parseLine(parser *fastjson.Parser, line []byte) (types.LogRecord, error) {
	v, err := parser.ParseBytes(line)
	if err != nil {
		return types.LogRecord{}, fmt.Errorf("invalid JSON: %w", err)
	}

	logType, err := types.ParseLogType(string(v.GetStringBytes("type")))
	if err != nil {
		return types.LogRecord{}, err
	}

	tsRaw := v.GetStringBytes("timestamp")
	if len(tsRaw) == 0 {
		return types.LogRecord{}, fmt.Errorf("missing timestamp")
	}
	ts, err := time.Parse(time.RFC3339Nano, string(tsRaw))
	if err != nil {
		return types.LogRecord{}, fmt.Errorf("invalid timestamp %q: %w", tsRaw, err)
	}

	id := string(v.GetStringBytes("id"))
	if id == "" {
		id = uuid.New().String()
	}

	payload := make([]byte, len(line))
	copy(payload, line)

	return types.LogRecord{
		ID:        id,
		Type:      logType,
		Timestamp: ts.UTC(),
		Payload:   payload,
	}, nil
}
