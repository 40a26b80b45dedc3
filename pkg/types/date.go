package types

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for calendar dates in keys and metadata.
const DateFormat = "2006-01-02"

// Date is a calendar date in UTC. Archive blobs are keyed by (LogType, Date),
// so all day-boundary arithmetic lives here.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate creates a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a date in YYYY-MM-DD form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("types: invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar date of t in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Today returns the current calendar date in UTC.
func Today() Date {
	return DateOf(time.Now())
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return d.toTime().Format(DateFormat)
}

// StartOfDay returns midnight UTC at the start of the day.
func (d Date) StartOfDay() time.Time {
	return d.toTime()
}

// EndOfDay returns the last representable instant of the day. Range queries
// over [StartOfDay, EndOfDay] are inclusive on both ends.
func (d Date) EndOfDay() time.Time {
	return d.toTime().Add(24*time.Hour - time.Nanosecond)
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	return DateOf(d.toTime().AddDate(0, 0, 1))
}

// Prev returns the preceding calendar day.
func (d Date) Prev() Date {
	return DateOf(d.toTime().AddDate(0, 0, -1))
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.toTime().Before(other.toTime())
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return d.toTime().After(other.toTime())
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) toTime() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// ArchiveKey derives the cold-store object key for one log type and day.
// The layout is <type>/<year>/<date>, e.g. "financial/2025/2025-01-15".
func ArchiveKey(logType LogType, date Date) string {
	return fmt.Sprintf("%s/%04d/%s", logType, date.Year, date)
}
