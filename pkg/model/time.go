package model

import (
	"fmt"
	"strings"
	"time"
)

// Time wraps time.Time with the RFC 3339 JSON encoding the board file uses.
// Timestamps are stored in UTC; fractional seconds are preserved.
type Time struct {
	time.Time
}

// NewTime returns t normalized to UTC.
func NewTime(t time.Time) Time {
	return Time{t.UTC()}
}

// UnmarshalJSON implements the json.Unmarshaler interface for Time.
func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("failed to parse time string '%s': %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

// MarshalJSON implements the json.Marshaler interface for Time.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339Nano) + `"`), nil
}
