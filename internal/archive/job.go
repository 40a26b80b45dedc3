// Package archive implements the daily archival job: it moves one calendar
// day of log records per type from the hot store into compressed,
// integrity-checked cold storage, and prunes the hot store only after the
// cold write has been verified.
package archive

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/logvault/logvault/internal/codec"
	"github.com/logvault/logvault/internal/coldstore"
	verrors "github.com/logvault/logvault/internal/errors"
	"github.com/logvault/logvault/internal/hotstore"
	"github.com/logvault/logvault/internal/retention"
	"github.com/logvault/logvault/pkg/types"
)

// Config holds archival job configuration.
type Config struct {
	// RetentionYears is the retention horizon applied to new blobs.
	RetentionYears int

	// StepTimeout bounds each I/O step (query, put, verify, delete) so a
	// stalled backend cannot hang a run indefinitely. Zero disables it.
	StepTimeout time.Duration

	// LockTTL is how long a per-(type, date) advisory lock survives a
	// crashed run.
	LockTTL time.Duration
}

// DefaultConfig returns the default archival configuration.
func DefaultConfig() Config {
	return Config{
		RetentionYears: 7,
		StepTimeout:    2 * time.Minute,
		LockTTL:        15 * time.Minute,
	}
}

// TypeResult reports the outcome for one log type within a run.
type TypeResult struct {
	Type      types.LogType `json:"type"`
	Count     int           `json:"count"`
	SizeBytes int64         `json:"size_bytes"`
	// Skipped is set when the blob already existed and the run only
	// verified it and pruned hot-store leftovers.
	Skipped bool `json:"skipped,omitempty"`
}

// AggregateResult is the outcome of one ArchiveDay invocation.
type AggregateResult struct {
	Date     string       `json:"date"`
	Archived []TypeResult `json:"archived"`
	Success  bool         `json:"success"`
	Errors   []string     `json:"errors,omitempty"`
}

// Job orchestrates query → compress → digest → write → verify → prune for
// each log type of one calendar day.
type Job struct {
	hot    hotstore.Store
	cold   coldstore.BlobStore
	codec  *codec.Codec
	locker *Locker
	config Config
}

// NewJob creates an archival job with explicitly injected gateways.
func NewJob(hot hotstore.Store, cold coldstore.BlobStore, c *codec.Codec, locker *Locker, cfg Config) *Job {
	if cfg.RetentionYears <= 0 {
		cfg.RetentionYears = 7
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 15 * time.Minute
	}
	return &Job{
		hot:    hot,
		cold:   cold,
		codec:  c,
		locker: locker,
		config: cfg,
	}
}

// ArchiveDay archives all four log types for the given day, sequentially and
// in fixed order. A failing type records its error and processing continues
// with the remaining types; Success is false if any type failed. The prune
// step for a type never runs unless that type's cold write was verified.
func (j *Job) ArchiveDay(ctx context.Context, date types.Date) (*AggregateResult, error) {
	result := &AggregateResult{
		Date:     date.String(),
		Archived: make([]TypeResult, 0, 4),
		Success:  true,
	}

	for _, logType := range types.AllLogTypes() {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		tr, err := j.archiveType(ctx, logType, date)
		if err != nil {
			result.Success = false
			result.Errors = append(result.Errors,
				fmt.Sprintf("%s/%s: %v", logType, date, err))
			log.Printf("archive: type=%s date=%s failed: %v", logType, date, err)
			continue
		}
		result.Archived = append(result.Archived, *tr)
	}

	return result, nil
}

// archiveType runs the two-phase protocol for one (type, date):
// Phase 1 is the durable write plus read-back verification, Phase 2 the
// hot-store prune, strictly conditional on Phase 1.
func (j *Job) archiveType(ctx context.Context, logType types.LogType, date types.Date) (*TypeResult, error) {
	release, ok := j.locker.TryAcquire(logType, date, j.config.LockTTL)
	if !ok {
		return nil, verrors.New(verrors.ErrCategoryArchive, verrors.CodeLockHeld,
			fmt.Sprintf("archival already in flight for %s/%s", logType, date))
	}
	defer release()

	key := types.ArchiveKey(logType, date)

	// Idempotency check: a prior run may have written the blob already.
	exists, err := j.blobExists(ctx, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return j.resumeArchived(ctx, logType, date, key)
	}

	records, err := j.queryDay(ctx, logType, date)
	if err != nil {
		return nil, err
	}

	// An empty day never produces a blob.
	if len(records) == 0 {
		return &TypeResult{Type: logType, Count: 0, SizeBytes: 0}, nil
	}

	frame, err := j.codec.Compress(records)
	if err != nil {
		return nil, err
	}
	digest := codec.Digest(frame)

	metadata := j.blobMetadata(logType, date, len(records), digest)
	if err := j.putBlob(ctx, key, frame, metadata); err != nil {
		return nil, err
	}

	if err := j.verifyBlob(ctx, key, digest); err != nil {
		return nil, err
	}

	// The blob is durable and verified; a failed tier transition is
	// retried on a later run and must not block the prune.
	if err := j.setTier(ctx, key); err != nil {
		log.Printf("archive: type=%s date=%s tier transition failed (blob intact): %v", logType, date, err)
	}

	deleted, err := j.pruneDay(ctx, logType, records)
	if err != nil {
		return nil, err
	}

	log.Printf("archive: type=%s date=%s archived %d records (%d bytes), pruned %d",
		logType, date, len(records), len(frame), deleted)

	return &TypeResult{
		Type:      logType,
		Count:     len(records),
		SizeBytes: int64(len(frame)),
	}, nil
}

// resumeArchived handles the re-archival path: the blob already exists, so
// the run verifies its digest, reports the stored count, and prunes hot-store
// leftovers that are contained in the blob (covers a crash between write and
// prune). Hot records absent from the blob have no verified write and are
// never pruned; their presence fails the type so an operator decides how to
// merge them. Existing blobs are never overwritten.
func (j *Job) resumeArchived(ctx context.Context, logType types.LogType, date types.Date, key string) (*TypeResult, error) {
	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()

	data, metadata, err := j.cold.Get(stepCtx, key)
	if err != nil {
		return nil, verrors.NewColdStoreError(verrors.CodeDownloadFailed,
			fmt.Sprintf("failed to read existing blob %s", key), err)
	}

	stored := metadata[coldstore.MetaSHA256]
	if computed := codec.Digest(data); stored == "" || computed != stored {
		return nil, verrors.NewIntegrityError(
			fmt.Sprintf("existing blob %s digest mismatch: stored=%s computed=%s", key, stored, codec.Digest(data)))
	}

	count, err := strconv.Atoi(metadata[coldstore.MetaCount])
	if err != nil {
		return nil, verrors.New(verrors.ErrCategoryArchive, verrors.CodeBadMetadata,
			fmt.Sprintf("existing blob %s has unparseable count %q", key, metadata[coldstore.MetaCount]))
	}

	leftovers, err := j.queryDay(ctx, logType, date)
	if err != nil {
		return nil, err
	}
	if len(leftovers) > 0 {
		archived, err := j.codec.Decompress(data)
		if err != nil {
			return nil, err
		}
		inBlob := make(map[string]bool, len(archived))
		for _, rec := range archived {
			inBlob[rec.ID] = true
		}

		var contained []types.LogRecord
		var late int
		for _, rec := range leftovers {
			if inBlob[rec.ID] {
				contained = append(contained, rec)
			} else {
				late++
			}
		}

		if len(contained) > 0 {
			deleted, err := j.pruneDay(ctx, logType, contained)
			if err != nil {
				return nil, err
			}
			log.Printf("archive: type=%s date=%s already archived, pruned %d leftover records", logType, date, deleted)
		}
		if late > 0 {
			return nil, verrors.New(verrors.ErrCategoryArchive, verrors.CodeUnarchivedRecords,
				fmt.Sprintf("%d hot records for %s/%s are not in the existing blob %s; refusing to prune them",
					late, logType, date, key))
		}
	} else {
		log.Printf("archive: type=%s date=%s already archived, skipping", logType, date)
	}

	return &TypeResult{
		Type:      logType,
		Count:     count,
		SizeBytes: int64(len(data)),
		Skipped:   true,
	}, nil
}

func (j *Job) blobMetadata(logType types.LogType, date types.Date, count int, digest string) map[string]string {
	return map[string]string{
		coldstore.MetaLogType:        string(logType),
		coldstore.MetaDate:           date.String(),
		coldstore.MetaCount:          strconv.Itoa(count),
		coldstore.MetaSHA256:         digest,
		coldstore.MetaRetentionUntil: retention.ComputeExpiry(date, j.config.RetentionYears).String(),
		coldstore.MetaCompression:    j.codec.Algorithm().String(),
	}
}

func (j *Job) blobExists(ctx context.Context, key string) (bool, error) {
	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()

	exists, err := j.cold.Exists(stepCtx, key)
	if err != nil {
		return false, verrors.NewColdStoreError(verrors.CodeDownloadFailed,
			fmt.Sprintf("existence check failed for %s", key), err)
	}
	return exists, nil
}

func (j *Job) queryDay(ctx context.Context, logType types.LogType, date types.Date) ([]types.LogRecord, error) {
	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()

	records, err := j.hot.QueryRange(stepCtx, logType, date.StartOfDay(), date.EndOfDay())
	if err != nil {
		return nil, verrors.NewHotStoreError(verrors.CodeQueryFailed,
			fmt.Sprintf("day query failed for %s/%s", logType, date), err)
	}
	return records, nil
}

func (j *Job) putBlob(ctx context.Context, key string, frame []byte, metadata map[string]string) error {
	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()

	if err := j.cold.Put(stepCtx, key, frame, metadata); err != nil {
		return verrors.NewColdStoreError(verrors.CodeUploadFailed,
			fmt.Sprintf("blob write failed for %s", key), err)
	}
	return nil
}

// verifyBlob reads the blob back and recomputes its digest. Only a
// successful verification clears the way for the hot-store prune.
func (j *Job) verifyBlob(ctx context.Context, key, expectedDigest string) error {
	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()

	data, _, err := j.cold.Get(stepCtx, key)
	if err != nil {
		return verrors.New(verrors.ErrCategoryArchive, verrors.CodeVerifyFailed,
			fmt.Sprintf("post-write read-back failed for %s: %v", key, err))
	}
	if computed := codec.Digest(data); computed != expectedDigest {
		return verrors.New(verrors.ErrCategoryArchive, verrors.CodeVerifyFailed,
			fmt.Sprintf("post-write digest mismatch for %s: want %s got %s", key, expectedDigest, computed))
	}
	return nil
}

func (j *Job) setTier(ctx context.Context, key string) error {
	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()
	return j.cold.SetTier(stepCtx, key, coldstore.TierArchive)
}

func (j *Job) pruneDay(ctx context.Context, logType types.LogType, records []types.LogRecord) (int64, error) {
	ids := make([]string, len(records))
	for i, rec := range records {
		ids[i] = rec.ID
	}

	stepCtx, cancel := j.stepContext(ctx)
	defer cancel()

	deleted, err := j.hot.DeleteBatch(stepCtx, logType, ids)
	if err != nil {
		return 0, verrors.NewHotStoreError(verrors.CodeDeleteFailed,
			fmt.Sprintf("hot-store prune failed for %s", logType), err)
	}
	return deleted, nil
}

func (j *Job) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if j.config.StepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, j.config.StepTimeout)
}
