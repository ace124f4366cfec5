// Package assets normalizes raw asset specifications and expands them into
// concrete file paths.
package assets

import (
	"path/filepath"
	"strings"
)

// Normalize flattens comma-joined fragments into an ordered list, trimming
// whitespace and dropping empty entries. "a.zip, b.zip" and ["a.zip",
// "b.zip"] normalize identically.
func Normalize(values ...string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Expand treats each entry as a filesystem glob. An entry matching nothing
// is kept as a literal path rather than silently dropped, so pre-resolved
// absolute paths pass through.
func Expand(patterns []string) []string {
	var out []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil || len(matches) == 0 {
			out = append(out, pattern)
			continue
		}
		out = append(out, matches...)
	}
	return out
}
