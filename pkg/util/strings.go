package util

import (
	"strconv"
	"strings"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// ParseInt64 parses a positive int64 identifier.
func ParseInt64(s string) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// NormalizeName trims a biomarker name and collapses inner whitespace runs.
// Case is preserved; matching is case-insensitive elsewhere.
func NormalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
