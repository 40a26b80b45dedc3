package retention

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/logvault/logvault/internal/coldstore"
	"github.com/logvault/logvault/pkg/types"
)

func TestComputeExpiry(t *testing.T) {
	cases := []struct {
		date  string
		years int
		want  string
	}{
		{"2025-01-15", 7, "2032-01-15"},
		{"2025-12-31", 7, "2032-12-31"},
		{"2024-02-29", 7, "2031-02-28"}, // 2031 is not a leap year
		{"2024-02-29", 4, "2028-02-29"}, // 2028 is
		{"2024-02-28", 7, "2031-02-28"},
		{"2025-06-01", 1, "2026-06-01"},
		{"2096-02-29", 4, "2100-02-28"}, // century year, not a leap year
	}

	for _, tc := range cases {
		date, err := types.ParseDate(tc.date)
		if err != nil {
			t.Fatalf("ParseDate(%s) failed: %v", tc.date, err)
		}
		got := ComputeExpiry(date, tc.years)
		if got.String() != tc.want {
			t.Errorf("ComputeExpiry(%s, %d) = %s, want %s", tc.date, tc.years, got, tc.want)
		}
	}
}

func TestIsLeapYear(t *testing.T) {
	for year, want := range map[int]bool{
		2024: true, 2025: false, 2000: true, 1900: false, 2100: false, 2028: true,
	} {
		if got := isLeapYear(year); got != want {
			t.Errorf("isLeapYear(%d) = %v, want %v", year, got, want)
		}
	}
}

// seedStore writes a blob with the given archived date and retention horizon.
func seedStore(t *testing.T, store *coldstore.LocalStore, logType types.LogType, date, until string, size int) {
	t.Helper()

	d, err := types.ParseDate(date)
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}

	metadata := map[string]string{
		coldstore.MetaLogType:        string(logType),
		coldstore.MetaDate:           date,
		coldstore.MetaCount:          "1",
		coldstore.MetaSHA256:         "deadbeef",
		coldstore.MetaRetentionUntil: until,
	}
	data := make([]byte, size)
	if err := store.Put(context.Background(), types.ArchiveKey(logType, d), data, metadata); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
}

func newTestMonitor(t *testing.T, windowDays int, now string) (*Monitor, *coldstore.LocalStore) {
	t.Helper()

	store, err := coldstore.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	nowTime, err := time.Parse(types.DateFormat, now)
	if err != nil {
		t.Fatalf("Bad test clock: %v", err)
	}

	m := NewMonitor(store, windowDays)
	m.now = func() time.Time { return nowTime }
	return m, store
}

func TestScanApproachingExpiry(t *testing.T) {
	m, store := newTestMonitor(t, 30, "2032-01-01")

	// Inside the 30-day window
	seedStore(t, store, types.LogTypeAuthentication, "2025-01-05", "2032-01-05", 100)
	seedStore(t, store, types.LogTypeFinancial, "2025-01-30", "2032-01-30", 100)
	// Exactly on the cutoff counts
	seedStore(t, store, types.LogTypeAccess, "2025-01-31", "2032-01-31", 100)
	// Beyond the window
	seedStore(t, store, types.LogTypeSystem, "2025-03-01", "2032-03-01", 100)
	// Already past expiry; detection only, never counted as approaching
	seedStore(t, store, types.LogTypeSystem, "2024-12-01", "2031-12-01", 100)

	count, err := m.ScanApproachingExpiry(context.Background(), 30)
	if err != nil {
		t.Fatalf("ScanApproachingExpiry failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 approaching blobs, got %d", count)
	}
}

func TestScanSkipsMalformedMetadata(t *testing.T) {
	m, store := newTestMonitor(t, 30, "2032-01-01")

	seedStore(t, store, types.LogTypeAuthentication, "2025-01-05", "2032-01-05", 100)
	seedStore(t, store, types.LogTypeAccess, "2025-01-06", "not-a-date", 100)

	// Blob with no retention metadata at all
	d, _ := types.ParseDate("2025-01-07")
	if err := store.Put(context.Background(), types.ArchiveKey(types.LogTypeSystem, d), []byte("x"), nil); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	count, err := m.ScanApproachingExpiry(context.Background(), 30)
	if err != nil {
		t.Fatalf("Scan must not fail on malformed metadata: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 approaching blob, got %d", count)
	}
}

func TestComputeSummary(t *testing.T) {
	m, store := newTestMonitor(t, 30, "2032-01-01")

	seedStore(t, store, types.LogTypeAuthentication, "2025-01-05", "2032-01-05", 500)
	seedStore(t, store, types.LogTypeAccess, "2025-06-10", "2032-06-10", 300)
	seedStore(t, store, types.LogTypeFinancial, "2024-11-20", "2031-11-20", 200)

	summary, err := m.Compute(context.Background())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if summary.TotalFiles != 3 {
		t.Errorf("Expected 3 files, got %d", summary.TotalFiles)
	}
	if summary.TotalSizeBytes != 1000 {
		t.Errorf("Expected 1000 bytes, got %d", summary.TotalSizeBytes)
	}
	if summary.OldestDate.String() != "2024-11-20" {
		t.Errorf("Expected oldest 2024-11-20, got %s", summary.OldestDate)
	}
	if summary.NewestDate.String() != "2025-06-10" {
		t.Errorf("Expected newest 2025-06-10, got %s", summary.NewestDate)
	}
	if summary.ExpiringInWindow != 1 {
		t.Errorf("Expected 1 expiring in window, got %d", summary.ExpiringInWindow)
	}
}

func TestComputeSummaryEmpty(t *testing.T) {
	m, _ := newTestMonitor(t, 30, "2032-01-01")

	summary, err := m.Compute(context.Background())
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	if summary.TotalFiles != 0 || summary.TotalSizeBytes != 0 {
		t.Errorf("Expected empty summary, got %+v", summary)
	}

	oldest, newest := summary.Dates()
	if oldest != "" || newest != "" {
		t.Errorf("Expected empty date bounds, got %q / %q", oldest, newest)
	}
}

func TestSummaryString(t *testing.T) {
	s := &Summary{TotalFiles: 2, TotalSizeBytes: 42, ExpiringInWindow: 1}
	got := s.String()
	want := fmt.Sprintf("files=%d size=%d oldest=%s newest=%s expiring=%d", 2, 42, "", "", 1)
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
