package healthmodels

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDate accepts RFC3339, zone-less ISO timestamps and plain dates.
// Zone-less timestamps are local time; plain dates are UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if IsDateOnly(s) {
		t, _ := time.Parse(time.DateOnly, s)
		return t, true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// IsDateOnly reports whether s is a plain YYYY-MM-DD date.
func IsDateOnly(s string) bool {
	_, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	return err == nil
}

// DecodeDate reads a string timestamp, epoch milliseconds, or the
// [year, month, day, hour, minute, second] array some JSON mappers emit.
// Arrays carry no zone and are read as local time.
func DecodeDate(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, false
	}
	switch raw[0] {
	case '"':
		var s string
		if json.Unmarshal(raw, &s) != nil {
			return time.Time{}, false
		}
		return ParseDate(s)
	case '[':
		var parts []int
		if json.Unmarshal(raw, &parts) != nil || len(parts) < 3 {
			return time.Time{}, false
		}
		for len(parts) < 6 {
			parts = append(parts, 0)
		}
		return time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], 0, time.Local), true
	}
	var ms int64
	if json.Unmarshal(raw, &ms) != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}
