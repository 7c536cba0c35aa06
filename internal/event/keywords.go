package event

import (
	"strings"
	"unicode/utf8"
)

// Keywords derives the search tokens for a title: lowercased, split on
// whitespace, tokens of one character or less dropped, duplicates removed
// keeping the first occurrence. The result is never nil.
func Keywords(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	out := make([]string, 0, len(fields))
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) <= 1 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}
