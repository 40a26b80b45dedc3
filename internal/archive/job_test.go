package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/logvault/logvault/internal/codec"
	"github.com/logvault/logvault/internal/coldstore"
	verrors "github.com/logvault/logvault/internal/errors"
	"github.com/logvault/logvault/internal/hotstore"
	"github.com/logvault/logvault/pkg/types"
)

// faultyCold wraps a BlobStore with switchable failures for safety tests.
type faultyCold struct {
	coldstore.BlobStore

	failPut     bool
	corruptGets bool
}

func (f *faultyCold) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	if f.failPut {
		return errors.New("injected put failure")
	}
	return f.BlobStore.Put(ctx, key, data, metadata)
}

func (f *faultyCold) Get(ctx context.Context, key string) ([]byte, map[string]string, error) {
	data, metadata, err := f.BlobStore.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if f.corruptGets && len(data) > 0 {
		tampered := make([]byte, len(data))
		copy(tampered, data)
		tampered[len(tampered)-1] ^= 0x01
		return tampered, metadata, nil
	}
	return data, metadata, nil
}

func testRecord(logType types.LogType, id string, ts time.Time) types.LogRecord {
	return types.LogRecord{
		ID:        id,
		Type:      logType,
		Timestamp: ts,
		Payload:   json.RawMessage(fmt.Sprintf(`{"id":%q}`, id)),
	}
}

// seedDay inserts the reference workload: 3 authentication, 0 access,
// 1 financial, and 2 system records on the given day.
func seedDay(t *testing.T, hot hotstore.Store, date types.Date) {
	t.Helper()

	base := date.StartOfDay().Add(6 * time.Hour)
	records := []types.LogRecord{
		testRecord(types.LogTypeAuthentication, "auth-1", base),
		testRecord(types.LogTypeAuthentication, "auth-2", base.Add(time.Minute)),
		testRecord(types.LogTypeAuthentication, "auth-3", base.Add(2*time.Minute)),
		testRecord(types.LogTypeFinancial, "fin-1", base.Add(time.Hour)),
		testRecord(types.LogTypeSystem, "sys-1", base.Add(2*time.Hour)),
		testRecord(types.LogTypeSystem, "sys-2", base.Add(3*time.Hour)),
	}
	if err := hot.Insert(context.Background(), records); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}

func newTestJob(t *testing.T, cold coldstore.BlobStore) (*Job, *hotstore.MemoryStore) {
	t.Helper()

	c, err := codec.New(codec.AlgorithmSnappy)
	if err != nil {
		t.Fatalf("codec.New failed: %v", err)
	}

	hot := hotstore.NewMemoryStore()
	job := NewJob(hot, cold, c, NewLocker(), Config{
		RetentionYears: 7,
		LockTTL:        time.Minute,
	})
	return job, hot
}

func TestArchiveDay(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)
	// A neighboring day must survive the run untouched
	nextDay := testRecord(types.LogTypeAuthentication, "auth-next", date.Next().StartOfDay().Add(time.Hour))
	if err := hot.Insert(context.Background(), []types.LogRecord{nextDay}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("ArchiveDay failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Expected success, got errors: %v", result.Errors)
	}
	if result.Date != "2025-01-15" {
		t.Errorf("Expected date 2025-01-15, got %s", result.Date)
	}

	wantCounts := map[types.LogType]int{
		types.LogTypeAuthentication: 3,
		types.LogTypeAccess:         0,
		types.LogTypeFinancial:      1,
		types.LogTypeSystem:         2,
	}
	if len(result.Archived) != 4 {
		t.Fatalf("Expected 4 type results, got %d", len(result.Archived))
	}
	for _, tr := range result.Archived {
		if tr.Count != wantCounts[tr.Type] {
			t.Errorf("Type %s: expected count %d, got %d", tr.Type, wantCounts[tr.Type], tr.Count)
		}
	}

	// The empty day produced no blob
	if exists, _ := local.Exists(context.Background(), "access/2025/2025-01-15"); exists {
		t.Error("Empty day must not produce a blob")
	}

	// Archived blobs carry verifiable metadata and landed on the archive tier
	for _, logType := range []types.LogType{types.LogTypeAuthentication, types.LogTypeFinancial, types.LogTypeSystem} {
		key := types.ArchiveKey(logType, date)
		data, metadata, err := local.Get(context.Background(), key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", key, err)
		}

		if metadata[coldstore.MetaLogType] != string(logType) {
			t.Errorf("%s: wrong log_type metadata %q", key, metadata[coldstore.MetaLogType])
		}
		if metadata[coldstore.MetaDate] != "2025-01-15" {
			t.Errorf("%s: wrong date metadata %q", key, metadata[coldstore.MetaDate])
		}
		if metadata[coldstore.MetaRetentionUntil] != "2032-01-15" {
			t.Errorf("%s: wrong retention_until %q", key, metadata[coldstore.MetaRetentionUntil])
		}
		if got, _ := strconv.Atoi(metadata[coldstore.MetaCount]); got != wantCounts[logType] {
			t.Errorf("%s: wrong count metadata %q", key, metadata[coldstore.MetaCount])
		}
		if metadata[coldstore.MetaSHA256] != codec.Digest(data) {
			t.Errorf("%s: stored digest does not match blob", key)
		}
		if tier, _ := local.GetTier(key); tier != coldstore.TierArchive {
			t.Errorf("%s: expected archive tier, got %s", key, tier)
		}
	}

	// Archived records are pruned; the neighboring day survives
	for logType, want := range map[types.LogType]int{
		types.LogTypeAuthentication: 1, // only auth-next remains
		types.LogTypeFinancial:      0,
		types.LogTypeSystem:         0,
	} {
		if got := hot.Count(logType); got != want {
			t.Errorf("Hot store %s: expected %d records left, got %d", logType, want, got)
		}
	}
}

func TestArchiveDayPutFailureKeepsHotRecords(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	cold := &faultyCold{BlobStore: local, failPut: true}
	job, hot := newTestJob(t, cold)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("ArchiveDay aborted: %v", err)
	}
	if result.Success {
		t.Error("Expected failure with a failing cold store")
	}
	if len(result.Errors) != 3 {
		t.Errorf("Expected 3 per-type errors (empty day succeeds), got %d: %v", len(result.Errors), result.Errors)
	}

	// Nothing may be pruned when no write was verified
	if hot.Count(types.LogTypeAuthentication) != 3 ||
		hot.Count(types.LogTypeFinancial) != 1 ||
		hot.Count(types.LogTypeSystem) != 2 {
		t.Error("Hot records were pruned despite failed cold writes")
	}
}

func TestArchiveDayVerifyFailureKeepsHotRecords(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	cold := &faultyCold{BlobStore: local, corruptGets: true}
	job, hot := newTestJob(t, cold)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("ArchiveDay aborted: %v", err)
	}
	if result.Success {
		t.Error("Expected failure when read-back verification fails")
	}

	if hot.Count(types.LogTypeAuthentication) != 3 {
		t.Error("Hot records were pruned despite failed verification")
	}
}

func TestArchiveDayPartialFailureContinues(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	// Pre-plant a corrupted authentication blob: its digest check fails, but
	// the remaining types must still be processed.
	key := types.ArchiveKey(types.LogTypeAuthentication, date)
	if err := local.Put(context.Background(), key, []byte("garbage"),
		map[string]string{coldstore.MetaSHA256: "bogus", coldstore.MetaCount: "3"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("ArchiveDay aborted: %v", err)
	}
	if result.Success {
		t.Error("Expected overall failure")
	}
	if len(result.Errors) != 1 {
		t.Errorf("Expected 1 error, got %v", result.Errors)
	}
	if len(result.Archived) != 3 {
		t.Errorf("Expected 3 successful types, got %d", len(result.Archived))
	}

	// The failing type keeps its hot records, the others were pruned
	if hot.Count(types.LogTypeAuthentication) != 3 {
		t.Error("Failing type's hot records must be untouched")
	}
	if hot.Count(types.LogTypeFinancial) != 0 || hot.Count(types.LogTypeSystem) != 0 {
		t.Error("Successful types must be pruned")
	}
}

func TestArchiveDayRerunSkipsExisting(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	if _, err := job.ArchiveDay(context.Background(), date); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// Simulate a crash between write and prune: re-insert the already
	// archived financial record, then re-run.
	leftover := testRecord(types.LogTypeFinancial, "fin-1", date.StartOfDay().Add(7*time.Hour))
	if err := hot.Insert(context.Background(), []types.LogRecord{leftover}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("Re-run failed: %v", err)
	}
	if !result.Success {
		t.Fatalf("Re-run must succeed: %v", result.Errors)
	}

	for _, tr := range result.Archived {
		if tr.Type == types.LogTypeAccess {
			continue // empty day, nothing to skip
		}
		if !tr.Skipped {
			t.Errorf("Type %s: re-run must report skipped", tr.Type)
		}
	}

	// The leftover was pruned without rewriting the blob
	if hot.Count(types.LogTypeFinancial) != 0 {
		t.Error("Leftover hot record must be pruned on re-run")
	}
}

func TestArchiveDayRerunKeepsLateRecords(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	if _, err := job.ArchiveDay(context.Background(), date); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// A record that arrives after the day was archived is in no blob; a
	// re-run must refuse to prune it. A genuine crash leftover (same ID as
	// an archived record) is pruned as before.
	late := testRecord(types.LogTypeFinancial, "fin-late", date.StartOfDay().Add(22*time.Hour))
	leftover := testRecord(types.LogTypeFinancial, "fin-1", date.StartOfDay().Add(7*time.Hour))
	if err := hot.Insert(context.Background(), []types.LogRecord{late, leftover}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("Re-run aborted: %v", err)
	}
	if result.Success {
		t.Error("Re-run with unarchived hot records must fail")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %v", result.Errors)
	}

	remaining, err := hot.QueryRange(context.Background(), types.LogTypeFinancial,
		date.StartOfDay(), date.EndOfDay())
	if err != nil {
		t.Fatalf("QueryRange failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "fin-late" {
		t.Fatalf("Expected only fin-late to survive, got %v", remaining)
	}

	_, err = job.archiveType(context.Background(), types.LogTypeFinancial, date)
	if verrors.GetCode(err) != verrors.CodeUnarchivedRecords {
		t.Errorf("Expected code %s, got %v", verrors.CodeUnarchivedRecords, err)
	}
}

func TestArchiveDayRerunDetectsCorruptExisting(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	if _, err := job.ArchiveDay(context.Background(), date); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	key := types.ArchiveKey(types.LogTypeSystem, date)
	if err := local.Corrupt(key, []byte("rotted bytes")); err != nil {
		t.Fatalf("Corrupt failed: %v", err)
	}

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("Re-run aborted: %v", err)
	}
	if result.Success {
		t.Error("Re-run over a corrupted blob must fail")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %v", result.Errors)
	}
}

func TestArchiveTypeLockContention(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	// Hold the authentication lock as if another run were in flight
	release, ok := job.locker.TryAcquire(types.LogTypeAuthentication, date, time.Minute)
	if !ok {
		t.Fatal("Expected to acquire")
	}
	defer release()

	result, err := job.ArchiveDay(context.Background(), date)
	if err != nil {
		t.Fatalf("ArchiveDay aborted: %v", err)
	}
	if result.Success {
		t.Error("Expected failure for the locked type")
	}
	if len(result.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %v", result.Errors)
	}
	if hot.Count(types.LogTypeAuthentication) != 3 {
		t.Error("Locked type must not be touched")
	}
	// Other types proceeded
	if hot.Count(types.LogTypeSystem) != 0 {
		t.Error("Unlocked types must be archived")
	}
}

func TestArchiveDayCancelledContext(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, hot := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	seedDay(t, hot, date)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := job.ArchiveDay(ctx, date); err == nil {
		t.Error("Expected error on cancelled context")
	}
	if hot.Count(types.LogTypeAuthentication) != 3 {
		t.Error("Cancelled run must not prune anything")
	}
}

func TestArchiveErrorsAreCategorized(t *testing.T) {
	local, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	job, _ := newTestJob(t, local)

	date := types.NewDate(2025, time.January, 15)
	release, ok := job.locker.TryAcquire(types.LogTypeAccess, date, time.Minute)
	if !ok {
		t.Fatal("Expected to acquire")
	}
	defer release()

	_, err = job.archiveType(context.Background(), types.LogTypeAccess, date)
	if err == nil {
		t.Fatal("Expected lock-held error")
	}
	if verrors.GetCode(err) != verrors.CodeLockHeld {
		t.Errorf("Expected code %s, got %s", verrors.CodeLockHeld, verrors.GetCode(err))
	}
}
