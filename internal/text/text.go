// Package text provides the normalization and truncation helpers used
// for embedding cache keys, content deduplication, and per-item prompt
// caps.
package text

import "strings"

// Normalize lowercases s and collapses all whitespace runs to single
// spaces. Two contents that normalize equal are treated as duplicates,
// and normalized text keys the embedding cache.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Truncate hard-caps s at max runes, appending an ellipsis marker when
// anything was cut. max <= 0 returns s unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
