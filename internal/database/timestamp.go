package database

import "time"

// TimestampLayout is the format of TriageRecord.Timestamp.
const TimestampLayout = "2006-01-02 15:04"

// FormatTimestamp truncates t to the minute in the stored layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// FormatTimestampDisplay formats a stored timestamp for display,
// e.g. "Mar 14, 2026 09:05". Unparseable values are returned as-is.
func FormatTimestampDisplay(ts string) string {
	t, err := time.Parse(TimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Format("Jan 02, 2006 15:04")
}
