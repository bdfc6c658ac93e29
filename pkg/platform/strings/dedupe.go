// Package strings provides string helpers shared by request parsing.
package strings

import (
	"strings"
)

// DedupeAndTrimLower trims and lowercases each value, drops blanks and keeps
// the first occurrence of each remaining value.
func DedupeAndTrimLower(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
