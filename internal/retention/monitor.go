// Package retention implements the retention horizon arithmetic and the
// cold-store metadata scans backing compliance reporting. The monitor only
// detects and reports approaching expiry; it never deletes anything.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/logvault/logvault/internal/coldstore"
	verrors "github.com/logvault/logvault/internal/errors"
	"github.com/logvault/logvault/pkg/types"
)

// ComputeExpiry returns the date with the same calendar month and day,
// advanced by the given number of years. A February 29 source date resolves
// to February 28 when the target year is not a leap year.
func ComputeExpiry(date types.Date, years int) types.Date {
	day := date.Day
	if date.Month == time.February && day == 29 && !isLeapYear(date.Year+years) {
		day = 28
	}
	return types.NewDate(date.Year+years, date.Month, day)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// Summary aggregates the cold store's archive inventory in a single pass.
type Summary struct {
	TotalFiles       int        `json:"total_files"`
	TotalSizeBytes   int64      `json:"total_size_bytes"`
	OldestDate       types.Date `json:"-"`
	NewestDate       types.Date `json:"-"`
	ExpiringInWindow int        `json:"expiring_in_window"`
}

// Monitor scans cold-store metadata for retention reporting.
type Monitor struct {
	cold       coldstore.BlobStore
	windowDays int
	now        func() time.Time
}

// NewMonitor creates a retention monitor. windowDays is the default
// approaching-expiry window used by Summary.
func NewMonitor(cold coldstore.BlobStore, windowDays int) *Monitor {
	if windowDays <= 0 {
		windowDays = 30
	}
	return &Monitor{
		cold:       cold,
		windowDays: windowDays,
		now:        time.Now,
	}
}

// ScanApproachingExpiry lists all blobs and counts those whose retention
// horizon falls within (now, now+windowDays]. Each match is logged with its
// key so operators can plan the manual compliance decision.
func (m *Monitor) ScanApproachingExpiry(ctx context.Context, windowDays int) (int, error) {
	if windowDays <= 0 {
		windowDays = m.windowDays
	}

	infos, err := m.cold.List(ctx, "")
	if err != nil {
		return 0, verrors.NewColdStoreError(verrors.CodeListFailed, "retention scan listing failed", err)
	}

	now := types.DateOf(m.now())
	cutoff := types.DateOf(m.now().AddDate(0, 0, windowDays))

	count := 0
	for _, info := range infos {
		until, ok := m.retentionUntil(info)
		if !ok {
			continue
		}
		if until.After(now) && !until.After(cutoff) {
			count++
			log.Printf("retention: blob %s expires %s (within %d days)", info.Key, until, windowDays)
		}
	}

	return count, nil
}

// Compute returns the summary for the whole archive inventory: blob count,
// total size, oldest and newest archived day, and how many blobs approach
// expiry within the monitor's default window.
func (m *Monitor) Compute(ctx context.Context) (*Summary, error) {
	infos, err := m.cold.List(ctx, "")
	if err != nil {
		return nil, verrors.NewColdStoreError(verrors.CodeListFailed, "summary listing failed", err)
	}

	now := types.DateOf(m.now())
	cutoff := types.DateOf(m.now().AddDate(0, 0, m.windowDays))

	summary := &Summary{}
	for _, info := range infos {
		summary.TotalFiles++
		summary.TotalSizeBytes += info.SizeBytes

		if dateStr, ok := info.Metadata[coldstore.MetaDate]; ok {
			if d, err := types.ParseDate(dateStr); err == nil {
				if summary.OldestDate.IsZero() || d.Before(summary.OldestDate) {
					summary.OldestDate = d
				}
				if summary.NewestDate.IsZero() || d.After(summary.NewestDate) {
					summary.NewestDate = d
				}
			}
		}

		if until, ok := m.retentionUntil(info); ok {
			if until.After(now) && !until.After(cutoff) {
				summary.ExpiringInWindow++
			}
		}
	}

	return summary, nil
}

// retentionUntil parses the retention_until metadata of one blob. Blobs with
// missing or malformed metadata are logged and skipped rather than failing
// the whole scan.
func (m *Monitor) retentionUntil(info coldstore.ObjectInfo) (types.Date, bool) {
	raw, ok := info.Metadata[coldstore.MetaRetentionUntil]
	if !ok {
		log.Printf("retention: blob %s has no %s metadata, skipping", info.Key, coldstore.MetaRetentionUntil)
		return types.Date{}, false
	}
	until, err := types.ParseDate(raw)
	if err != nil {
		log.Printf("retention: blob %s has malformed retention date %q, skipping", info.Key, raw)
		return types.Date{}, false
	}
	return until, true
}

// Dates renders the date bounds for API responses, empty when no blob
// carried a parseable date.
func (s *Summary) Dates() (oldest, newest string) {
	if !s.OldestDate.IsZero() {
		oldest = s.OldestDate.String()
	}
	if !s.NewestDate.IsZero() {
		newest = s.NewestDate.String()
	}
	return oldest, newest
}

// String renders a one-line operator summary.
func (s *Summary) String() string {
	oldest, newest := s.Dates()
	return fmt.Sprintf("files=%d size=%d oldest=%s newest=%s expiring=%d",
		s.TotalFiles, s.TotalSizeBytes, oldest, newest, s.ExpiringInWindow)
}
