package utils

import "time"

const (
	layoutDate = "2006-01-02"
	layoutHM   = "15:04"
)

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatDate formats time to YYYY-MM-DD in UTC.
func FormatDate(t time.Time) string {
	return t.UTC().Format(layoutDate)
}

// FormatClock formats time to HH:MM in UTC.
func FormatClock(t time.Time) string {
	return t.UTC().Format(layoutHM)
}
