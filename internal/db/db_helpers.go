package db

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ─── Time Helpers ────────────────────────────────────────────────────────────

// TimeFormat is the layout every table stores timestamps in (UTC).
const TimeFormat = "2006-01-02 15:04:05"

// The driver hands DATETIME columns back as time.Time, which database/sql
// renders as RFC 3339 when scanning into a string.
var readFormats = []string{TimeFormat, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"}

// ParseTime parses a stored timestamp; malformed values yield the zero time.
func ParseTime(s string) time.Time {
	for _, layout := range readFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// ParseNullTime parses a nullable time string from SQLite
func ParseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := ParseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// NullTimeString converts an optional time to a nullable string for SQLite storage
func NullTimeString(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(TimeFormat)
}

// TimeString converts a time to string, using current time if zero
func TimeString(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(TimeFormat)
}

// ─── Type Conversion Helpers ─────────────────────────────────────────────────

// BoolToInt converts a bool to int for SQLite storage
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// IntToBool converts an int to bool from SQLite storage
func IntToBool(i int) bool {
	return i == 1
}

// NullString maps a nil pointer to SQL NULL.
func NullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// ─── JSON Helpers ────────────────────────────────────────────────────────────

// JSONText encodes v for a JSON column; nil maps to SQL NULL.
func JSONText(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DecodeJSONMap decodes a nullable JSON object column.
func DecodeJSONMap(ns sql.NullString) map[string]any {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil
	}
	return m
}
