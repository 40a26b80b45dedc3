package types

import (
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-15")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}
	if d.Year != 2025 || d.Month != time.January || d.Day != 15 {
		t.Errorf("Expected 2025-01-15, got %v", d)
	}

	for _, bad := range []string{"", "2025-1-15", "15/01/2025", "2025-13-01", "2025-02-30"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestDateString(t *testing.T) {
	d := NewDate(2025, time.March, 7)
	if d.String() != "2025-03-07" {
		t.Errorf("Expected 2025-03-07, got %s", d.String())
	}
}

func TestDayBounds(t *testing.T) {
	d := NewDate(2025, time.January, 15)

	start := d.StartOfDay()
	if !start.Equal(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected StartOfDay: %v", start)
	}

	end := d.EndOfDay()
	if !end.Before(d.Next().StartOfDay()) {
		t.Error("EndOfDay must precede the next day's start")
	}
	if end.Day() != 15 {
		t.Errorf("EndOfDay left the day: %v", end)
	}
}

func TestNextPrev(t *testing.T) {
	d := NewDate(2024, time.February, 28)
	if next := d.Next(); next.String() != "2024-02-29" {
		t.Errorf("Expected 2024-02-29, got %s", next)
	}
	if next := NewDate(2025, time.February, 28).Next(); next.String() != "2025-03-01" {
		t.Errorf("Expected 2025-03-01, got %s", next)
	}
	if prev := NewDate(2025, time.January, 1).Prev(); prev.String() != "2024-12-31" {
		t.Errorf("Expected 2024-12-31, got %s", prev)
	}
}

func TestBeforeAfter(t *testing.T) {
	a := NewDate(2025, time.January, 15)
	b := NewDate(2025, time.January, 16)

	if !a.Before(b) || b.Before(a) {
		t.Error("Before comparison wrong")
	}
	if !b.After(a) || a.After(b) {
		t.Error("After comparison wrong")
	}
	if a.Before(a) || a.After(a) {
		t.Error("A date is neither before nor after itself")
	}
}

func TestDateOfNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+10", 10*3600)
	// 02:00 on Jan 16 in UTC+10 is still Jan 15 in UTC
	d := DateOf(time.Date(2025, 1, 16, 2, 0, 0, 0, loc))
	if d.String() != "2025-01-15" {
		t.Errorf("Expected 2025-01-15, got %s", d)
	}
}

func TestArchiveKey(t *testing.T) {
	d := NewDate(2025, time.January, 15)

	cases := map[LogType]string{
		LogTypeAuthentication: "authentication/2025/2025-01-15",
		LogTypeAccess:         "access/2025/2025-01-15",
		LogTypeFinancial:      "financial/2025/2025-01-15",
		LogTypeSystem:         "system/2025/2025-01-15",
	}
	for logType, want := range cases {
		if got := ArchiveKey(logType, d); got != want {
			t.Errorf("ArchiveKey(%s) = %s, want %s", logType, got, want)
		}
	}
}

func TestIsZero(t *testing.T) {
	if !(Date{}).IsZero() {
		t.Error("Zero date must report IsZero")
	}
	if NewDate(2025, time.January, 1).IsZero() {
		t.Error("Non-zero date must not report IsZero")
	}
}
