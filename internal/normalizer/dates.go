package normalizer

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// dateLayouts are tried in order. RubyDate is the archive/API "created_at" layout.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RubyDate,
	time.UnixDate,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// millisThreshold separates epoch seconds from epoch milliseconds.
const millisThreshold = 1e12

// parseDate reads a source timestamp. ok is false when nothing usable was found.
func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case string:
		s := strings.TrimSpace(d)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f)
		}
	case json.Number:
		if f, err := d.Float64(); err == nil {
			return fromEpoch(f)
		}
	case float64:
		return fromEpoch(d)
	}
	return time.Time{}, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	if f >= millisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}
