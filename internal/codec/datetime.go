package codec

import (
	"fmt"
	"time"
)

const isoDateLayout = "2006-01-02"
const isoTimestampLayout = "2006-01-02T15:04:05"

// ParseDate parses a strict YYYY-MM-DD string into days since 1970-01-01.
func ParseDate(s string) (int32, error) {
	t, err := time.Parse(isoDateLayout, s)
	if err != nil {
		return 0, err
	}
	days := t.Unix() / 86400
	return int32(days), nil
}

// FormatDate renders days-since-epoch as YYYY-MM-DD.
func FormatDate(days int32) string {
	t := time.Unix(int64(days)*86400, 0).UTC()
	return t.Format(isoDateLayout)
}

// ParseTimestamp parses YYYY-MM-DDTHH:MM:SS[Z] into seconds since epoch.
func ParseTimestamp(s string) (int64, error) {
	trimmed := s
	if len(trimmed) > 0 && trimmed[len(trimmed)-1] == 'Z' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	t, err := time.Parse(isoTimestampLayout, trimmed)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.Unix(), nil
}

// FormatTimestamp renders seconds-since-epoch as YYYY-MM-DDTHH:MM:SSZ (UTC).
func FormatTimestamp(sec int64) string {
	return time.Unix(sec, 0).UTC().Format(isoTimestampLayout) + "Z"
}

func parseDate(s string) (int32, error)      { return ParseDate(s) }
func formatDate(days int32) string           { return FormatDate(days) }
func parseTimestamp(s string) (int64, error) { return ParseTimestamp(s) }
func formatTimestamp(sec int64) string       { return FormatTimestamp(sec) }
