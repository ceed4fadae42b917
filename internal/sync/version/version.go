// Package version holds the reconciliation policy shared by live writes and
// the backfill job: how versions advance and how timestamps are normalized.
package version

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Source tags stamped on every written row and document.
const (
	SourceWeb = "web"
	// SourceBackfill keeps the tag earlier importers wrote so existing rows
	// stay comparable.
	SourceBackfill = "firebase"
)

// MaxSupplied is the largest version a caller may send. Anything above it
// has no successor in an int64.
const MaxSupplied = math.MaxInt64 - 1

// NextVersion returns the candidate version for a live write. A supplied
// version <= 0 counts as absent. The result saturates at math.MaxInt64.
func NextVersion(supplied, stored int64) int64 {
	base := int64(1)
	switch {
	case supplied > 0:
		base = supplied
	case stored > 0:
		base = stored
	}
	if base > MaxSupplied {
		return math.MaxInt64
	}
	return base + 1
}

// Persisted is the version that ends up stored: never below what is already
// there.
func Persisted(stored, candidate int64) int64 {
	return max(stored, candidate)
}

// EnsureUTC converts t to UTC, substituting fallback for the zero time.
func EnsureUTC(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback.UTC()
	}
	return t.UTC()
}

// epochMillisThreshold separates epoch seconds from epoch milliseconds.
// Seconds only cross it in the year 33658.
const epochMillisThreshold = 1e12

// Epoch numbers past 9999-12-31T23:59:59.999Z are not instants.
const (
	maxEpochSeconds = 253402300799
	maxEpochMillis  = maxEpochSeconds*1000 + 999
)

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime interprets v as an instant. Strings without an offset are UTC.
// Numbers are epoch seconds, or milliseconds when too large to be seconds;
// either way they must land before the year 10000.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return ParseTime(*t)
	case string:
		return parseTimeString(t)
	}
	if f, ok := epochValue(v); ok {
		return fromEpoch(f)
	}
	return time.Time{}, false
}

// BeyondRange reports whether v is an epoch number later than the last
// instant ParseTime accepts.
func BeyondRange(v any) bool {
	f, ok := epochValue(v)
	if !ok || math.IsNaN(f) {
		return false
	}
	if f >= epochMillisThreshold {
		return f > maxEpochMillis
	}
	return f >= maxEpochSeconds+1
}

func epochValue(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func fromEpoch(f float64) (time.Time, bool) {
	if f <= 0 || math.IsNaN(f) || BeyondRange(f) {
		return time.Time{}, false
	}
	if f >= epochMillisThreshold {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

// AsInteger reports whether v is an integral number and returns it.
// Fractional numbers and non-numeric strings are not integers.
func AsInteger(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || n >= math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return AsInteger(f)
		}
		return 0, false
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	}
	return 0, false
}

// ParseVersion returns v as a positive version; anything else is absent.
func ParseVersion(v any) (int64, bool) {
	n, ok := AsInteger(v)
	if !ok || n <= 0 {
		return 0, false
	}
	return n, true
}

// First returns the first value among keys that is present and non-empty.
func First(doc map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		v, ok := doc[k]
		if !ok || v == nil {
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

// FirstString is First rendered as a trimmed string.
func FirstString(doc map[string]any, keys ...string) string {
	v, ok := First(doc, keys...)
	if !ok {
		return ""
	}
	return String(v)
}

// String renders scalar identifiers and labels as trimmed text.
func String(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		if s == math.Trunc(s) {
			return strconv.FormatInt(int64(s), 10)
		}
		return strconv.FormatFloat(s, 'f', -1, 64)
	case fmt.Stringer:
		return strings.TrimSpace(s.String())
	default:
		return strings.TrimSpace(fmt.Sprint(s))
	}
}
