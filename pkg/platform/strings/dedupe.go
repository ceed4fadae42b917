// Package strings provides string manipulation utilities.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SplitList splits comma-separated lists (as given on command lines or in
// environment variables), lowercases entries and drops blanks and duplicates.
//
// Example:
//
//	SplitList("Attendance, users,,attendance")
//	// Returns: []string{"attendance", "users"}
func SplitList(values ...string) []string {
	var parts []string
	for _, v := range values {
		for _, p := range strings.Split(v, ",") {
			parts = append(parts, strings.ToLower(p))
		}
	}
	return DedupeAndTrim(parts)
}
