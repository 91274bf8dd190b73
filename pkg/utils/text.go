package utils

import "strings"

// NormalizeLabel canonicalizes a line-item label for cache keys and embedding:
// lower-cased, trimmed, with internal whitespace runs collapsed to single spaces.
// "  Net   Sales " and "net sales" normalize to the same key.
func NormalizeLabel(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
