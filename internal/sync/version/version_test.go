package version

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextVersion(t *testing.T) {
	tests := []struct {
		name     string
		supplied int64
		stored   int64
		want     int64
	}{
		{"new record without version", 0, 0, 2},
		{"stored version advances", 0, 5, 6},
		{"supplied version wins", 9, 5, 10},
		{"supplied version below stored", 2, 5, 3},
		{"negative supplied counts as absent", -4, 5, 6},
		{"largest suppliable version", MaxSupplied, 0, math.MaxInt64},
		{"supplied version saturates", math.MaxInt64, 0, math.MaxInt64},
		{"stored version saturates", 0, math.MaxInt64, math.MaxInt64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextVersion(tt.supplied, tt.stored))
		})
	}
}

func TestPersistedNeverRegresses(t *testing.T) {
	for stored := int64(0); stored < 20; stored++ {
		for supplied := int64(-1); supplied < 20; supplied++ {
			got := Persisted(stored, NextVersion(supplied, stored))
			assert.GreaterOrEqual(t, got, stored)
		}
	}
	assert.Equal(t, int64(5), Persisted(5, 3))
	assert.Equal(t, int64(6), Persisted(5, NextVersion(0, 5)))
	assert.Equal(t, int64(math.MaxInt64), Persisted(0, NextVersion(math.MaxInt64, 0)))
}

func TestEnsureUTC(t *testing.T) {
	fallback := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, fallback, EnsureUTC(time.Time{}, fallback))

	local := time.Date(2024, 1, 2, 8, 34, 5, 0, time.FixedZone("IST", 5*3600+1800))
	got := EnsureUTC(local, fallback)
	assert.Equal(t, time.UTC, got.Location())
	assert.True(t, got.Equal(local))
}

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input any
		want  time.Time
	}{
		{"zulu", "2024-03-01T09:30:00Z", want},
		{"explicit utc offset", "2024-03-01T09:30:00+00:00", want},
		{"positive offset", "2024-03-01T15:00:00+05:30", want},
		{"naive string is utc", "2024-03-01T09:30:00", want},
		{"naive with fraction", "2024-03-01T09:30:00.000", want},
		{"space separated", "2024-03-01 09:30:00", want},
		{"date only", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch seconds", float64(want.Unix()), want},
		{"epoch seconds int", want.Unix(), want},
		{"epoch millis", want.UnixMilli(), want},
		{"json number", json.Number("1709285400"), want},
		{"time value", want.In(time.FixedZone("X", 3600)), want},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTime(tt.input)
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got), "got %s", got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestParseTimeZuluEqualsOffset(t *testing.T) {
	a, ok := ParseTime("2024-05-05T10:00:00Z")
	require.True(t, ok)
	b, ok := ParseTime("2024-05-05T10:00:00+00:00")
	require.True(t, ok)
	assert.True(t, a.Equal(b))
}

func TestParseTimeRejects(t *testing.T) {
	for _, v := range []any{nil, "", "  ", "yesterday", "2024-13-45", true, time.Time{}, -5, map[string]any{}} {
		_, ok := ParseTime(v)
		assert.False(t, ok, "%v", v)
	}
}

func TestParseTimeEpochRange(t *testing.T) {
	last := time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

	got, ok := ParseTime(last.Unix())
	require.True(t, ok)
	assert.Equal(t, last, got)

	got, ok = ParseTime(last.UnixMilli() + 999)
	require.True(t, ok)
	assert.Equal(t, last.Add(999*time.Millisecond), got)

	tooLarge := []any{
		last.Unix() + 1,
		float64(5e11),
		last.UnixMilli() + 1000,
		float64(1.7e18),
		json.Number("1700000000000000"),
		float64(1e300),
		math.Inf(1),
	}
	for _, v := range tooLarge {
		_, ok := ParseTime(v)
		assert.False(t, ok, "%v", v)
		assert.True(t, BeyondRange(v), "%v", v)
	}

	for _, v := range []any{last.Unix(), float64(1709285400), -5, "1e300", nil} {
		assert.False(t, BeyondRange(v), "%v", v)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		input any
		want  int64
		ok    bool
	}{
		{int64(3), 3, true},
		{3, 3, true},
		{float64(7), 7, true},
		{json.Number("12"), 12, true},
		{"4", 4, true},
		{float64(2.5), 0, false},
		{float64(math.MaxInt64), 0, false},
		{json.Number("9223372036854775807"), math.MaxInt64, true},
		{"abc", 0, false},
		{0, 0, false},
		{-1, 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseVersion(tt.input)
		assert.Equal(t, tt.ok, ok, "%v", tt.input)
		assert.Equal(t, tt.want, got, "%v", tt.input)
	}
}

func TestFirst(t *testing.T) {
	doc := map[string]any{
		"userId":  "",
		"user_id": "u-9",
		"tsUtc":   nil,
		"ts_utc":  "2024-01-01T00:00:00Z",
		"count":   float64(42),
	}

	v, ok := First(doc, "userId", "user_id")
	require.True(t, ok)
	assert.Equal(t, "u-9", v)

	_, ok = First(doc, "missing", "tsUtc")
	assert.False(t, ok)

	assert.Equal(t, "2024-01-01T00:00:00Z", FirstString(doc, "tsUtc", "ts_utc"))
	assert.Equal(t, "42", FirstString(doc, "count"))
	assert.Equal(t, "", FirstString(doc, "nope"))
}
