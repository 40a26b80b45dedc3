package hotstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	verrors "github.com/logvault/logvault/internal/errors"
	"github.com/logvault/logvault/pkg/types"
)

// batchChunkSize bounds the number of placeholders per DELETE statement.
// SQLite's default variable limit is 999.
const batchChunkSize = 500

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB // Write connection (single writer)
	readDB *sql.DB // Read connection pool (concurrent readers)
	dbPath string
	mu     sync.Mutex // Write-only lock (reads don't need this)

	insertStmt *sql.Stmt
}

// NewSQLiteStore opens (or creates) the live log store at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Write connection: single writer with WAL mode
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("hotstore: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)

	// Read connection pool: concurrent readers
	readDB, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("hotstore: failed to open read database: %w", err)
	}
	readDB.SetMaxOpenConns(4)
	readDB.SetMaxIdleConns(4)
	readDB.SetConnMaxLifetime(5 * time.Minute)

	store := &SQLiteStore{
		db:     db,
		readDB: readDB,
		dbPath: dbPath,
	}

	if err := store.initSchema(); err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("hotstore: failed to initialize schema: %w", err)
	}

	insertStmt, err := db.Prepare(`
		INSERT OR REPLACE INTO log_records (id, log_type, ts, payload)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		readDB.Close()
		db.Close()
		return nil, fmt.Errorf("hotstore: failed to prepare insert statement: %w", err)
	}
	store.insertStmt = insertStmt

	return store, nil
}

// initSchema creates the records table and its range-query index.
func (s *SQLiteStore) initSchema() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS log_records (
			id       TEXT NOT NULL PRIMARY KEY,
			log_type TEXT NOT NULL,
			ts       INTEGER NOT NULL,
			payload  BLOB
		) WITHOUT ROWID`,
		`CREATE INDEX IF NOT EXISTS idx_log_records_type_ts ON log_records(log_type, ts, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// Insert appends records to the live store.
func (s *SQLiteStore) Insert(ctx context.Context, records []types.LogRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return verrors.NewHotStoreError(verrors.CodeInsertFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	stmt := tx.StmtContext(ctx, s.insertStmt)
	for _, rec := range records {
		if !rec.Type.Valid() {
			return verrors.NewHotStoreError(verrors.CodeInsertFailed,
				fmt.Sprintf("record %s has invalid log type %q", rec.ID, rec.Type), nil)
		}
		if _, err := stmt.ExecContext(ctx, rec.ID, string(rec.Type), rec.Timestamp.UTC().UnixNano(), []byte(rec.Payload)); err != nil {
			return verrors.NewHotStoreError(verrors.CodeInsertFailed,
				fmt.Sprintf("failed to insert record %s", rec.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return verrors.NewHotStoreError(verrors.CodeInsertFailed, "failed to commit insert batch", err)
	}
	return nil
}

// QueryRange returns records of one log type within [start, end] inclusive,
// ordered by timestamp then id. That order is what archives preserve.
func (s *SQLiteStore) QueryRange(ctx context.Context, logType types.LogType, start, end time.Time) ([]types.LogRecord, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, ts, payload
		FROM log_records
		WHERE log_type = ? AND ts >= ? AND ts <= ?
		ORDER BY ts, id`,
		string(logType), start.UTC().UnixNano(), end.UTC().UnixNano())
	if err != nil {
		return nil, verrors.NewHotStoreError(verrors.CodeQueryFailed,
			fmt.Sprintf("range query failed for type %s", logType), err)
	}
	defer rows.Close()

	var records []types.LogRecord
	for rows.Next() {
		var rec types.LogRecord
		var ts int64
		var payload []byte
		if err := rows.Scan(&rec.ID, &ts, &payload); err != nil {
			return nil, verrors.NewHotStoreError(verrors.CodeQueryFailed, "failed to scan record", err)
		}
		rec.Type = logType
		rec.Timestamp = time.Unix(0, ts).UTC()
		if len(payload) > 0 {
			rec.Payload = payload
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, verrors.NewHotStoreError(verrors.CodeQueryFailed, "row iteration failed", err)
	}

	return records, nil
}

// DeleteBatch removes the identified records, chunking to stay under the
// SQLite placeholder limit. The whole batch runs in one transaction.
func (s *SQLiteStore) DeleteBatch(ctx context.Context, logType types.LogType, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, verrors.NewHotStoreError(verrors.CodeDeleteFailed, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var total int64
	for offset := 0; offset < len(ids); offset += batchChunkSize {
		chunk := ids[offset:]
		if len(chunk) > batchChunkSize {
			chunk = chunk[:batchChunkSize]
		}

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]

		args := make([]interface{}, 0, len(chunk)+1)
		args = append(args, string(logType))
		for _, id := range chunk {
			args = append(args, id)
		}

		res, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM log_records WHERE log_type = ? AND id IN (%s)", placeholders),
			args...)
		if err != nil {
			return 0, verrors.NewHotStoreError(verrors.CodeDeleteFailed,
				fmt.Sprintf("batch delete failed for type %s", logType), err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, verrors.NewHotStoreError(verrors.CodeDeleteFailed, "failed to commit delete batch", err)
	}
	return total, nil
}

// Close closes both database connections.
func (s *SQLiteStore) Close() error {
	if s.insertStmt != nil {
		s.insertStmt.Close()
	}
	if err := s.readDB.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
